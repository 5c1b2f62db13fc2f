package conf

import (
	"github.com/squareup/datatable/perrors"
)

const (
	DefaultMetricsListenAddr = "localhost:2112"
)

type Config struct {
	MaxMemoryBytes    int64  `help:"Upper bound on bytes held by column storage, 0 means unlimited" json:"max_memory_bytes,omitempty"`
	MetricsEnabled    bool   `help:"Expose prometheus metrics over HTTP" json:"metrics_enabled,omitempty"`
	MetricsListenAddr string `help:"Address the metrics HTTP server listens on" default:"localhost:2112" json:"metrics_listen_addr,omitempty"`
	FailureInjection  bool   `help:"Register failpoints which can be activated from the shell" json:"failure_injection,omitempty"`
}

func (c *Config) Validate() error {
	if c.MaxMemoryBytes < 0 {
		return perrors.NewInvalidConfigurationError("MaxMemoryBytes must be >= 0")
	}
	if c.MetricsEnabled && c.MetricsListenAddr == "" {
		return perrors.NewInvalidConfigurationError("MetricsListenAddr must be specified when metrics are enabled")
	}
	return nil
}

func NewDefaultConfig() *Config {
	return &Config{
		MetricsListenAddr: DefaultMetricsListenAddr,
	}
}
