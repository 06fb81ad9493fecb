package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/reqsim/internal/config"
	"github.com/torosent/reqsim/internal/counter"
	"github.com/torosent/reqsim/internal/httpclient"
	"github.com/torosent/reqsim/internal/logging"
	"github.com/torosent/reqsim/internal/metrics"
	"github.com/torosent/reqsim/internal/output"
	"github.com/torosent/reqsim/internal/runner"
	"github.com/torosent/reqsim/internal/tracing"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	progressInterval = 250 * time.Millisecond
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		var logged *exitError
		if !errors.As(err, &logged) {
			bootstrapLogger().Error("reqsim failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

// exitError marks an error already written to the run's logger.
type exitError struct {
	err error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// bootstrapLogger reports failures that happen before the configured logger
// exists, such as invalid flags.
func bootstrapLogger() *zap.Logger {
	logger, err := logging.New(config.LogConfig{Level: "error", Format: "console", Outputs: []string{"stderr"}})
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	logger.Info("Program started.", zap.String("version", version), zap.Int("tasks", cfg.Tasks))
	defer func() {
		if err != nil {
			logger.Error("program failed", zap.Error(err))
			err = &exitError{err: err}
		}
		logger.Info("Program finished.")
		_ = logger.Sync()
	}()

	provider, err := tracing.Init(ctx, cfg.Tracing,
		tracing.WithServiceVersion(version),
		tracing.WithRunAttributes(
			attribute.Int("reqsim.tasks", cfg.Tasks),
			attribute.Int64("reqsim.latency_ms", cfg.Latency.Milliseconds()),
		),
	)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector()
	shared := counter.New(counter.WithLogger(logger))
	dispatcher := runner.New(shared, runner.Options{
		Latency:       cfg.Latency,
		NoLatency:     cfg.Latency == 0,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival),
		Logger:        logger,
		Tracer:        provider.Tracer(),
		Collector:     collector,
	})
	logger.Info("Server initialized.",
		zap.Duration("latency", cfg.Latency),
		zap.Int("rate", cfg.Rate),
		zap.Bool("tracing", provider.Resource() != nil),
	)

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, cfg.Tasks, shared.Value, progressInterval, stderr)
		progress.Start()
	}

	collector.Start()
	result, dispatchErr := dispatcher.Dispatch(ctx, cfg.Tasks)
	if progress != nil {
		progress.Stop()
	}

	report := output.Report{
		RunID: result.RunID,
		Tasks: output.TaskSummary{
			Dispatched: result.Dispatched,
			Launched:   result.Launched,
			Completed:  result.Completed,
			Failed:     result.Failed,
		},
		Counter:    shared.Value(),
		Recoveries: shared.Recoveries(),
	}
	if dispatchErr != nil {
		report.Error = dispatchErr.Error()
	}

	var requestErr error
	if cfg.TargetURL != "" && ctx.Err() == nil {
		client := httpclient.New(
			httpclient.NewClient(cfg.Timeout),
			httpclient.WithLogger(logger),
			httpclient.WithTracer(provider.Tracer(), provider.ShouldPropagate()),
			httpclient.WithCollector(collector),
		)
		report.Request, requestErr = fetchTarget(ctx, client, cfg.TargetURL)
	}
	report.Stats = collector.Stats(result.Duration)

	if err := printReport(stdout, cfg.Output, report); err != nil {
		return err
	}

	var errs []error
	if dispatchErr != nil {
		errs = append(errs, fmt.Errorf("dispatch: %w", dispatchErr))
	}
	if requestErr != nil {
		errs = append(errs, fmt.Errorf("request: %w", requestErr))
	}
	return errors.Join(errs...)
}

// fetchTarget performs the outbound GET. A non-2xx answer is reported but is not
// an error; only transport failures are.
func fetchTarget(ctx context.Context, client *httpclient.RequestClient, target string) (*output.RequestReport, error) {
	start := time.Now()
	outcome, err := client.Get(ctx, target)
	req := &output.RequestReport{URL: target}
	if err != nil {
		req.Error = err.Error()
		req.LatencyMs = float64(time.Since(start)) / float64(time.Millisecond)
		var terr *httpclient.TransportError
		if errors.As(err, &terr) {
			req.ErrorKind = string(terr.Kind)
		}
		return req, err
	}
	req.Success = outcome.Success()
	req.StatusCode = outcome.StatusCode
	req.Body = outcome.Body
	req.LatencyMs = float64(outcome.Latency) / float64(time.Millisecond)
	return req, nil
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch model {
	case config.ArrivalPoisson:
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}

func printReport(w io.Writer, format config.OutputFormat, report output.Report) error {
	switch format {
	case config.OutputJSON:
		return output.PrintJSONReport(w, report)
	case config.OutputYAML:
		return output.PrintYAMLReport(w, report)
	default:
		output.PrintReport(w, report)
		return nil
	}
}
