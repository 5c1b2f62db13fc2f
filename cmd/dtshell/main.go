package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	konghcl "github.com/alecthomas/kong-hcl/v2"
	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/datatable/conf"
	"github.com/squareup/datatable/datatable"
	"github.com/squareup/datatable/failinject"
	plog "github.com/squareup/datatable/log"
	"github.com/squareup/datatable/metrics"
	"github.com/squareup/datatable/metrics/prometheus"
	"github.com/squareup/datatable/plugin"
)

type arguments struct {
	Config kong.ConfigFlag `help:"Path to config file" type:"existingfile"`
	Log    plog.Config     `help:"Configuration for the logger" embed:"" prefix:"log-"`
	Engine conf.Config     `help:"Engine configuration" embed:"" prefix:""`
	VI     bool            `help:"Enable VI mode."`
}

func main() {
	args, err := parseArguments(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if err := run(args); err != nil {
		log.Fatal(err)
	}
}

func parseArguments(args []string) (*arguments, error) {
	cfg := &arguments{Engine: *conf.NewDefaultConfig()}
	parser, err := kong.New(cfg, kong.Name("dtshell"), kong.Configuration(konghcl.Loader), int64Mapper)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Log.Configure(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// environment is everything the shell runs against, started and ready to use.
type environment struct {
	metrics  metrics.Factory
	injector failinject.Injector
	engine   *datatable.Engine
}

func startEnvironment(cfg conf.Config) (*environment, error) {
	var factory metrics.Factory
	if cfg.MetricsEnabled {
		factory = prometheus.NewFactory(cfg)
	} else {
		factory = metrics.NewFakeFactory()
	}
	if err := factory.Start(); err != nil {
		return nil, err
	}
	var injector failinject.Injector
	if cfg.FailureInjection {
		injector = failinject.NewInjector()
	} else {
		injector = failinject.NewDummyInjector()
	}
	if err := injector.Start(); err != nil {
		return nil, err
	}
	engine, err := datatable.NewEngine(cfg, nil, injector, factory)
	if err != nil {
		return nil, err
	}
	return &environment{metrics: factory, injector: injector, engine: engine}, nil
}

func (e *environment) stop() {
	if err := e.injector.Stop(); err != nil {
		log.Warnf("failed to stop failure injector %v", err)
	}
	if err := e.metrics.Stop(); err != nil {
		log.Warnf("failed to stop metrics %v", err)
	}
}

func run(args *arguments) error {
	env, err := startEnvironment(args.Engine)
	if err != nil {
		return err
	}
	defer env.stop()

	shell := NewShell(env.engine, env.injector, args.Engine.FailureInjection, plugin.Default(), os.Stdout)
	defer shell.Close()

	home, err := os.UserHomeDir()
	if err != nil {
		return errors.WithStack(err)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "datatable> ",
		HistoryFile:            filepath.Join(home, ".dtshell.history"),
		DisableAutoSaveHistory: true,
		VimMode:                args.VI,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = rl.Close()
	}()
	for {
		line, err := rl.Readline()
		if err == io.EOF {
			return nil
		}
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return errors.WithStack(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		_ = rl.SaveHistory(line)
		if err := shell.Execute(line); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}
