// Command transcriber runs transcription workflows and inspects their durable state.
//
//	transcriber [-config file] worker
//	transcriber [-config file] serve
//	transcriber [-config file] start <audio-url>
//	transcriber [-config file] status <instance-id>
//	transcriber [-config file] wait <instance-id>
//	transcriber [-config file] history <instance-id>
//	transcriber [-config file] terminate <instance-id> [reason]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k0kubun/pp/v3"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/voxflow/go-transcribe/client"
	"github.com/voxflow/go-transcribe/config"
	"github.com/voxflow/go-transcribe/core"
	"github.com/voxflow/go-transcribe/diag"
	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/worker"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRANSCRIBE_CONFIG"), "path to the YAML config file")
	waitTimeout := flag.Duration("wait", 5*time.Minute, "how long wait blocks for an instance to finish")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		die(err)
	}

	logger := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("Could not set GOMAXPROCS", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, flag.Args(), *waitTimeout); err != nil {
		die(err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, waitTimeout time.Duration) error {
	tp, err := newTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutting down tracer provider", "error", err)
		}
	}()

	b, err := newBackend(cfg, logger, tp)
	if err != nil {
		return err
	}
	defer b.Close()

	c := client.New(b)
	d := transcription.NewDispatcher(c, transcription.Settings{
		PollInterval:  cfg.Workflow.PollInterval,
		Timeout:       cfg.Workflow.Timeout,
		RetryAttempts: cfg.Workflow.RetryAttempts,
	})

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "worker":
		return runWorker(ctx, cfg, logger, b, nil)

	case "serve":
		mux := diag.NewServeMux(b)
		h := transcription.NewHandler(d, logger)
		mux.Handle("/transcriptions", h)
		mux.Handle("/transcriptions/", h)

		return runWorker(ctx, cfg, logger, b, &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})

	case "start":
		url, err := arg(rest, "audio url")
		if err != nil {
			return err
		}

		id, err := d.Start(ctx, url)
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil

	case "status":
		id, err := arg(rest, "instance id")
		if err != nil {
			return err
		}

		s, err := d.Status(ctx, id)
		if err != nil {
			return err
		}

		fmt.Println(s)
		return nil

	case "wait":
		id, err := arg(rest, "instance id")
		if err != nil {
			return err
		}

		r, err := client.GetWorkflowResult[*transcription.Record](ctx, c, core.NewWorkflowInstance(id, ""), waitTimeout)
		if err != nil {
			return err
		}

		pp.Println(r)
		return nil

	case "history":
		id, err := arg(rest, "instance id")
		if err != nil {
			return err
		}

		h, err := c.GetWorkflowInstanceHistory(ctx, core.NewWorkflowInstance(id, ""))
		if err != nil {
			return err
		}

		printer := pp.New()
		printer.SetColoringEnabled(false)
		for _, e := range h {
			printer.Println(e)
		}

		return nil

	case "terminate":
		id, err := arg(rest, "instance id")
		if err != nil {
			return err
		}

		reason := "terminated from cli"
		if len(rest) > 1 {
			reason = rest[1]
		}

		return c.TerminateWorkflowInstance(ctx, core.NewWorkflowInstance(id, ""), reason)

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runWorker processes workflow and activity tasks until ctx is canceled. When srv is not nil it
// is served alongside and shut down with the worker.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, b diag.Backend, srv *http.Server) error {
	provider, err := newProvider(cfg.Speech)
	if err != nil {
		return err
	}

	sink, closeSink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	w := worker.New(b, &worker.Options{
		WorkflowPollers:           cfg.Worker.WorkflowPollers,
		ActivityPollers:           cfg.Worker.ActivityPollers,
		MaxParallelWorkflowTasks:  cfg.Worker.MaxParallelWorkflowTasks,
		MaxParallelActivityTasks:  cfg.Worker.MaxParallelActivityTasks,
		WorkflowPollingInterval:   cfg.Worker.PollingInterval,
		ActivityPollingInterval:   cfg.Worker.PollingInterval,
		WorkflowHeartbeatInterval: worker.DefaultOptions.WorkflowHeartbeatInterval,
		ActivityHeartbeatInterval: worker.DefaultOptions.ActivityHeartbeatInterval,
		MaxPollBackoff:            worker.DefaultOptions.MaxPollBackoff,
		HistoryCacheSize:          cfg.Worker.HistoryCacheSize,
		HistoryCacheTTL:           worker.DefaultOptions.HistoryCacheTTL,
	})

	if err := transcription.Register(w, &transcription.Activities{Provider: provider, Sink: sink}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := w.Start(gctx); err != nil {
		return err
	}

	logger.Info("Worker started", "backend", cfg.Backend.Type, "provider", cfg.Speech.Provider, "sink", cfg.Sink.Type)

	if srv != nil {
		g.Go(func() error {
			logger.Info("Listening", "addr", srv.Addr)

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving http: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return w.WaitForCompletion()
	})

	err = g.Wait()
	logger.Info("Worker stopped")

	return err
}

func arg(args []string, name string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("missing %s", name)
	}

	return args[0], nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] worker|serve|start <audio-url>|status <id>|wait <id>|history <id>|terminate <id> [reason]\n", os.Args[0])
	flag.PrintDefaults()
}

func die(err error) {
	fmt.Fprintf(os.Stderr, "transcriber: %v\n", err)
	os.Exit(1)
}
