package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bft-labs/distsolve"
	"github.com/bft-labs/distsolve/internal/adapters/metrics"
	"github.com/bft-labs/distsolve/internal/adapters/natslink"
	"github.com/bft-labs/distsolve/internal/adapters/tcp"
	"github.com/bft-labs/distsolve/internal/cliconfig"
	"github.com/bft-labs/distsolve/internal/lsq"
	"github.com/bft-labs/distsolve/pkg/log"
)

// synthetic describes the straight line the example prediffer samples.
type synthetic struct {
	a, b, noise float64
}

func newWorkerCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	data := synthetic{a: 2, b: 0.5, noise: 0.01}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve one prediffer or solver until the master quits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, cfg, *cfgPath, false); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, *cfg, data, newLogger())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Role, "role", cfg.Role, "prediffer or solver")
	f.StringVar(&cfg.Listen, "listen", cfg.Listen, "address to accept the master on (tcp)")
	f.IntVar(&cfg.Index, "index", cfg.Index, "position in the worker pool (nats)")
	f.IntVar(&cfg.Samples, "samples", cfg.Samples, "synthetic samples owned by a prediffer")
	f.Float64Var(&cfg.Tolerance, "tolerance", cfg.Tolerance, "relative update below which a solver reports convergence")
	f.Float64Var(&data.a, "model-a", data.a, "intercept of the synthetic line")
	f.Float64Var(&data.b, "model-b", data.b, "slope of the synthetic line")
	f.Float64Var(&data.noise, "noise", data.noise, "standard deviation of the synthetic noise")
	return cmd
}

func runWorker(ctx context.Context, cfg cliconfig.Config, data synthetic, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg)
	defer serveMetrics(cfg.MetricsAddr, reg, logger)()

	link, chunkMax, closeTransport, err := acceptMaster(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	pc := distsolve.PoolConfig{ChunkMax: chunkMax, MaxMessageBytes: cfg.MaxMessageBytes, MaxFrameBytes: cfg.MaxFrameBytes, Metrics: m, Logger: logger}
	conn := distsolve.NewConn(link, "master", pc)
	defer conn.Close()

	logger.Info("worker serving", log.String("role", cfg.Role), log.String("transport", cfg.Transport))
	switch cfg.Role {
	case cliconfig.RoleSolver:
		return distsolve.ServeSolver(ctx, conn, lsq.NewSolver(cfg.Tolerance, logger), pc)
	default:
		src := lsq.Synthetic(cfg.Samples, data.a, data.b, data.noise)
		return distsolve.ServePrediffer(ctx, conn, lsq.NewPrediffer(src, logger), pc)
	}
}

// acceptMaster waits for the master to reach this worker.
func acceptMaster(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (distsolve.Link, int, func() error, error) {
	switch cfg.Transport {
	case cliconfig.TransportNATS:
		pool := prediffersPool
		if cfg.Role == cliconfig.RoleSolver {
			pool = solversPool
		}
		name := fmt.Sprintf("distsolve-%s-%d", cfg.Role, cfg.Index)
		nt := natslink.New(natslink.Config{URL: cfg.NATSURL, Prefix: cfg.NATSPrefix, Name: name}, logger)
		if err := nt.Open(ctx); err != nil {
			return nil, 0, nil, err
		}
		logger.Info("waiting for master", log.String("subject", nt.Subject(pool, cfg.Index, "ready")))
		link, err := nt.Accept(ctx, pool, cfg.Index)
		if err != nil {
			nt.Close()
			return nil, 0, nil, err
		}
		return link, min(cfg.ChunkMax, nt.ChunkMax()), nt.Close, nil

	default:
		tt := tcp.New(cfg.DialTimeout, logger)
		if err := tt.Open(ctx); err != nil {
			return nil, 0, nil, err
		}
		ln, err := tt.Listen(cfg.Listen)
		if err != nil {
			tt.Close()
			return nil, 0, nil, err
		}
		logger.Info("waiting for master", log.String("addr", ln.Addr()))
		link, err := ln.Accept(ctx)
		ln.Close()
		if err != nil {
			tt.Close()
			return nil, 0, nil, err
		}
		return link, cfg.ChunkMax, tt.Close, nil
	}
}
