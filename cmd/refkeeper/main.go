package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/refkeeper/internal/daemon"
	"github.com/bft-labs/refkeeper/pkg/log"
)

const helpDescription = `
Keep one shared health monitor alive per endpoint, no matter how many
parts of your config refer to it.

Highlights:
  - One monitor per endpoint URL, started once and shared by every referrer.
  - Monitors are torn down cleanly when the last referrer goes away.
  - Configure via file, env, or flags; --watch reloads the endpoint set live.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  refkeeper --endpoint https://a.example.com/healthz --endpoint https://b.example.com/healthz
  refkeeper --config $HOME/.refkeeper/config.toml --watch
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newLogger(level string) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log-level: %w", err)
	}
	zl := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(lvl).With().Timestamp().Logger()
	return log.NewZerologAdapterWithLogger(zl), nil
}

func main() {
	cfg := daemon.DefaultConfig()
	var cfgPath string
	var logLevel string

	root := &cobra.Command{
		Use:     "refkeeper",
		Short:   "Keep one shared health monitor alive per endpoint",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Determine config path (default $HOME/.refkeeper/config.toml)
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = daemon.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && daemon.FileExists(cfgFile) {
				fc, err := daemon.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := daemon.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				cfg.ConfigPath = cfgFile
			}

			// Environment variables (REFKEEPER_*) override file config but are
			// overridden by flags (checked via changed map)
			if err := daemon.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			logger.Info("configuration",
				log.Any("endpoints", cfg.Endpoints),
				log.Bool("watch", cfg.Watch),
				log.Duration("probe_interval", cfg.ProbeInterval))

			d, err := daemon.New(cfg, daemon.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}

			// Signal handling for graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case sig := <-sigCh:
					logger.Info("received signal, stopping", log.String("signal", sig.String()))
					cancel()
				case <-ctx.Done():
				}
			}()

			return d.Run(ctx)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.refkeeper/config.toml)")
	root.Flags().StringArrayVar(&cfg.Endpoints, "endpoint", nil, "endpoint URL to monitor (repeatable)")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload the endpoint set when the config file changes")

	root.Flags().DurationVar(&cfg.ProbeInterval, "probe-interval", cfg.ProbeInterval, "delay between probes of a healthy endpoint")
	root.Flags().DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "HTTP timeout for a single probe")
	root.Flags().DurationVar(&cfg.DebounceDelay, "debounce", cfg.DebounceDelay, "delay before reloading a changed config file")

	root.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "refkeeper:", err)
		os.Exit(1)
	}
}
