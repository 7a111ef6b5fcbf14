package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/distsolve/internal/cliconfig"
	"github.com/bft-labs/distsolve/pkg/log"
)

const helpDescription = `
Run a distributed least-squares calibration.

A master cuts the observation domain into work domains and drives two worker
pools through each one: prediffers compute partial equations over the data
they own, solvers merge them into a new parameter estimate. The loop repeats
until the solver reports convergence.

Start the workers first, then the master:

  distsolve worker --role prediffer --listen 127.0.0.1:7401
  distsolve worker --role solver    --listen 127.0.0.1:7402
  distsolve master --prediffers 127.0.0.1:7401 --solvers 127.0.0.1:7402
`

var exampleUsage = strings.TrimSpace(`
  distsolve master --config $HOME/.distsolve/config.toml
  distsolve worker --role solver --transport nats --nats-url nats://127.0.0.1:4222 --index 0
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "distsolve",
		Short:         "Distributed least-squares calibration master and workers",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.distsolve/config.toml)")
	pf.StringVar(&cfg.Transport, "transport", cfg.Transport, "link transport: tcp or nats")
	pf.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server URL (nats transport)")
	pf.StringVar(&cfg.NATSPrefix, "nats-prefix", cfg.NATSPrefix, "subject prefix (nats transport)")
	pf.IntVar(&cfg.ChunkMax, "chunk-max", cfg.ChunkMax, "largest single link transfer in bytes; must match on master and workers")
	pf.IntVar(&cfg.MaxMessageBytes, "max-message-bytes", cfg.MaxMessageBytes, "largest accepted message; longer ones are truncated")
	pf.IntVar(&cfg.MaxFrameBytes, "max-frame-bytes", cfg.MaxFrameBytes, "largest message length a peer may declare; larger headers fail the receive")
	pf.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "how long to wait for peers to come up")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	pf.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (optional)")

	root.AddCommand(newMasterCmd(&cfg, &cfgPath), newWorkerCmd(&cfg, &cfgPath))

	if err := root.Execute(); err != nil {
		l := cliconfig.Logger()
		l.Error().Err(err).Msg("distsolve")
		os.Exit(1)
	}
}

// loadConfig layers file, environment and flags (flags win), validates the
// result and applies the log level. It returns the config file path when
// one was read.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string, master bool) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	used := ""
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
		used = cfgFile
	} else if cfgPath != "" {
		return "", fmt.Errorf("config file %s not found", cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}
	if err := cfg.Validate(master); err != nil {
		return "", err
	}
	if err := cliconfig.SetLogLevel(cfg.LogLevel); err != nil {
		return "", fmt.Errorf("log-level: %w", err)
	}
	return used, nil
}

func newLogger() log.Logger {
	return log.NewZerologAdapterWithLogger(cliconfig.Logger())
}

// serveMetrics exposes reg on addr until the returned stop is called.
// An empty addr disables the endpoint.
func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) (stop func()) {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.String("addr", addr), log.Err(err))
		}
	}()
	logger.Info("serving metrics", log.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
