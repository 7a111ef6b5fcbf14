package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bft-labs/distsolve"
	"github.com/bft-labs/distsolve/internal/adapters/metrics"
	"github.com/bft-labs/distsolve/internal/adapters/natslink"
	"github.com/bft-labs/distsolve/internal/adapters/tcp"
	"github.com/bft-labs/distsolve/internal/cliconfig"
	"github.com/bft-labs/distsolve/pkg/log"
	"github.com/bft-labs/distsolve/plugins/configwatcher"
)

// Pool names. They double as NATS subject segments.
const (
	prediffersPool = "prediffers"
	solversPool    = "solvers"
)

// quitTimeout bounds the final Quit broadcast after the run context ends.
const quitTimeout = 10 * time.Second

func newMasterCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Drive the worker pools through every configured step",
		RunE: func(cmd *cobra.Command, args []string) error {
			used, err := loadConfig(cmd, cfg, *cfgPath, true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMaster(ctx, *cfg, used, newLogger())
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&cfg.Prediffers, "prediffers", cfg.Prediffers, "prediffer addresses (tcp) or names (nats), in index order")
	f.StringSliceVar(&cfg.Solvers, "solvers", cfg.Solvers, "solver addresses (tcp) or names (nats), in index order")
	f.IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "cap on solve rounds per work domain (0 = unlimited)")
	f.StringSliceVar(&cfg.Steps, "steps", cfg.Steps, "steps to run in order: solve, simple")

	f.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "dataset name passed to workers")
	f.StringVar(&cfg.Column, "column", cfg.Column, "data column passed to workers")
	f.StringSliceVar(&cfg.Models, "models", cfg.Models, "model components passed to workers")
	f.IntVar(&cfg.SubBand, "sub-band", cfg.SubBand, "sub-band passed to workers")
	f.BoolVar(&cfg.CalcUVW, "calc-uvw", cfg.CalcUVW, "ask workers to recompute UVW coordinates")

	f.Float64Var(&cfg.FreqStart, "freq-start", cfg.FreqStart, "full domain frequency start")
	f.Float64Var(&cfg.FreqEnd, "freq-end", cfg.FreqEnd, "full domain frequency end")
	f.Float64Var(&cfg.TimeStart, "time-start", cfg.TimeStart, "full domain time start")
	f.Float64Var(&cfg.TimeEnd, "time-end", cfg.TimeEnd, "full domain time end")
	f.Float64Var(&cfg.FreqSize, "freq-size", cfg.FreqSize, "work domain frequency size (0 = whole axis)")
	f.Float64Var(&cfg.TimeSize, "time-size", cfg.TimeSize, "work domain time size (0 = whole axis)")
	return cmd
}

func runMaster(ctx context.Context, cfg cliconfig.Config, cfgFile string, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg)
	defer serveMetrics(cfg.MetricsAddr, reg, logger)()

	predLinks, solverLinks, chunkMax, closeTransport, err := connectWorkers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	pc := distsolve.PoolConfig{ChunkMax: chunkMax, MaxMessageBytes: cfg.MaxMessageBytes, MaxFrameBytes: cfg.MaxFrameBytes, Metrics: m, Logger: logger}
	preds := distsolve.NewPool(prediffersPool, predLinks, pc)
	solvers := distsolve.NewPool(solversPool, solverLinks, pc)
	defer preds.Close()
	defer solvers.Close()

	ctl, err := distsolve.NewMaster(preds, solvers,
		distsolve.WithLogger(logger),
		distsolve.WithMetrics(m),
		distsolve.WithMaxIterations(cfg.MaxIterations),
	)
	if err != nil {
		return err
	}

	if cfgFile != "" {
		w := configwatcher.New(configwatcher.Config{
			Path:            cfgFile,
			Logger:          logger,
			OnMaxIterations: ctl.SetMaxIterations,
			OnLogLevel:      cliconfig.SetLogLevel,
		})
		if err := w.Start(ctx); err != nil {
			logger.Warn("config watcher disabled", log.Err(err))
		} else {
			defer w.Shutdown(context.Background())
		}
	}

	runErr := drive(ctx, ctl, cfg)

	// Workers only exit on Quit, so send it even when the run failed.
	qctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
	defer cancel()
	if err := ctl.Quit(qctx); err != nil {
		logger.Warn("quit broadcast incomplete", log.Err(err))
	}

	st := ctl.Stats()
	logger.Info("master finished",
		log.String("state", ctl.State().String()),
		log.Int("prediffer_writes", st.Prediffers.Writes),
		log.Int("prediffer_reads", st.Prediffers.Reads),
		log.Int("solver_writes", st.Solvers.Writes),
		log.Int("solver_reads", st.Solvers.Reads),
	)
	return runErr
}

func drive(ctx context.Context, ctl *distsolve.Control, cfg cliconfig.Config) error {
	if err := ctl.SetInitInfo(ctx, cfg.InitInfo()); err != nil {
		return err
	}
	if err := ctl.SetWorkDomainSpec(cfg.Shape()); err != nil {
		return err
	}
	for i, name := range cfg.Steps {
		kind, err := cliconfig.ParseStepKind(name)
		if err != nil {
			return err
		}
		step := distsolve.Step{Kind: kind, Name: fmt.Sprintf("%s-%d", name, i)}
		if err := ctl.ProcessSteps(ctx, step); err != nil {
			if errors.Is(err, distsolve.ErrMaxIterations) {
				return fmt.Errorf("step %s: %w (raise max-iterations or loosen the solver tolerance)", step.Name, err)
			}
			return fmt.Errorf("step %s: %w", step.Name, err)
		}
	}
	return nil
}

// connectWorkers opens the configured transport and one link per worker.
// The returned chunk limit already respects the transport's own ceiling.
func connectWorkers(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (preds, solvers []distsolve.Link, chunkMax int, closeFn func() error, err error) {
	switch cfg.Transport {
	case cliconfig.TransportNATS:
		nt := natslink.New(natslink.Config{URL: cfg.NATSURL, Prefix: cfg.NATSPrefix, Name: "distsolve-master"}, logger)
		if err := nt.Open(ctx); err != nil {
			return nil, nil, 0, nil, err
		}
		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		if preds, err = dialNATS(dctx, nt, prediffersPool, len(cfg.Prediffers)); err != nil {
			nt.Close()
			return nil, nil, 0, nil, err
		}
		if solvers, err = dialNATS(dctx, nt, solversPool, len(cfg.Solvers)); err != nil {
			closeLinks(preds)
			nt.Close()
			return nil, nil, 0, nil, err
		}
		return preds, solvers, min(cfg.ChunkMax, nt.ChunkMax()), nt.Close, nil

	default:
		tt := tcp.New(cfg.DialTimeout, logger)
		if err := tt.Open(ctx); err != nil {
			return nil, nil, 0, nil, err
		}
		if preds, err = tt.DialAll(ctx, cfg.Prediffers); err != nil {
			tt.Close()
			return nil, nil, 0, nil, err
		}
		if solvers, err = tt.DialAll(ctx, cfg.Solvers); err != nil {
			closeLinks(preds)
			tt.Close()
			return nil, nil, 0, nil, err
		}
		return preds, solvers, cfg.ChunkMax, tt.Close, nil
	}
}

func dialNATS(ctx context.Context, nt *natslink.Transport, pool string, n int) ([]distsolve.Link, error) {
	links := make([]distsolve.Link, 0, n)
	for i := 0; i < n; i++ {
		l, err := nt.Dial(ctx, pool, i)
		if err != nil {
			closeLinks(links)
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

func closeLinks(links []distsolve.Link) {
	for _, l := range links {
		l.Close()
	}
}
