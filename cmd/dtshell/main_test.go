package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/datatable/conf"
	"github.com/squareup/datatable/perrors"
	"github.com/stretchr/testify/require"
)

func resetLogging(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})
}

func TestParseArgumentsFromConfigFile(t *testing.T) {
	resetLogging(t)
	args, err := parseArguments([]string{"--config", "testdata/config.hcl"})
	require.NoError(t, err)
	require.Equal(t, int64(1048576), args.Engine.MaxMemoryBytes)
	require.True(t, args.Engine.FailureInjection)
	require.False(t, args.Engine.MetricsEnabled)
	require.Equal(t, conf.DefaultMetricsListenAddr, args.Engine.MetricsListenAddr)
	require.Equal(t, "debug", args.Log.Level)
	require.Equal(t, "json", args.Log.Format)
	require.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	resetLogging(t)
	args, err := parseArguments([]string{"--config", "testdata/config.hcl", "--max-memory-bytes=2048", "--log-level=warn"})
	require.NoError(t, err)
	require.Equal(t, int64(2048), args.Engine.MaxMemoryBytes)
	require.Equal(t, "warn", args.Log.Level)
}

func TestMemoryLimitAcceptsWholeFloats(t *testing.T) {
	resetLogging(t)
	args, err := parseArguments([]string{"--max-memory-bytes=1e3"})
	require.NoError(t, err)
	require.Equal(t, int64(1000), args.Engine.MaxMemoryBytes)

	_, err = parseArguments([]string{"--max-memory-bytes=1.5"})
	require.Error(t, err)
	_, err = parseArguments([]string{"--max-memory-bytes=lots"})
	require.Error(t, err)
}

func TestParseWholeNumber(t *testing.T) {
	for text, expected := range map[string]int64{
		"0":                     0,
		"-12":                   -12,
		"1.048576e+06":          1048576,
		"9223372036854775807":   9223372036854775807,
		"-9.223372036854776e18": -9223372036854775808,
	} {
		n, err := parseWholeNumber(text)
		require.NoError(t, err, text)
		require.Equal(t, expected, n, text)
	}
	for _, text := range []string{"0.5", "9.3e18", "NaN", "Inf", ""} {
		_, err := parseWholeNumber(text)
		require.Error(t, err, text)
	}
}

func TestParseArgumentsDefaults(t *testing.T) {
	resetLogging(t)
	args, err := parseArguments(nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), args.Engine.MaxMemoryBytes)
	require.False(t, args.Engine.FailureInjection)
	require.Equal(t, "text", args.Log.Format)
	require.Equal(t, "info", args.Log.Level)
	require.Equal(t, *conf.NewDefaultConfig(), args.Engine)
}

func TestParseArgumentsInvalid(t *testing.T) {
	resetLogging(t)
	_, err := parseArguments([]string{"--max-memory-bytes=-1"})
	require.True(t, perrors.HasCode(err, perrors.InvalidConfiguration))

	_, err = parseArguments([]string{"--config", "testdata/does_not_exist.hcl"})
	require.Error(t, err)
}

func TestStartEnvironment(t *testing.T) {
	env, err := startEnvironment(conf.Config{FailureInjection: true})
	require.NoError(t, err)
	defer env.stop()
	require.Equal(t, []string{"alloc_column", "assemble_table"}, env.injector.Names())
	require.NotNil(t, env.engine.Pool())
}
