package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/vaccine-rollout-sim/core"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/artifact"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/observability"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/sim"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/sim/state"
)

// Config is the command line of a batch.
type Config struct {
	ConfigPath   string
	Locations    []string
	Draws        int
	FirstDraw    int
	ArtifactPath string
	Concurrency  int
	MetricsAddr  string
	OutputPath   string
}

func main() {
	var cfg Config
	var locations string
	flag.StringVar(&cfg.ConfigPath, "config", "configs/run.yaml", "Path to the YAML run configuration")
	flag.StringVar(&locations, "locations", "", "Comma-separated locations; defaults to the config's location or every location in the artifact")
	flag.IntVar(&cfg.Draws, "draws", 1, "Number of draws to run per location")
	flag.IntVar(&cfg.FirstDraw, "first-draw", 0, "First draw number")
	flag.StringVar(&cfg.ArtifactPath, "artifact", "", "Artifact database; overrides the config's artifact")
	flag.IntVar(&cfg.Concurrency, "concurrency", 4, "Maximum runs executing at once")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables it")
	flag.StringVar(&cfg.OutputPath, "output", "", "File to write results to; stdout when empty")
	flag.Parse()
	cfg.Locations = splitList(locations)

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "batch failed", logging.Err(err))
		os.Exit(1)
	}
}

// run executes every (location, draw) of the batch and writes the results.
// It returns an error when setup fails or any run fails. Tracing is set up
// once the config is known so spans carry the batch's schedule and
// scenario.
func run(ctx context.Context, cfg Config, log logging.Logger) error {
	runCfg, err := loadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.ArtifactPath != "" {
		runCfg.Artifact = cfg.ArtifactPath
	}

	tracing := observability.TracingConfigFromEnv().ForBatch(runCfg.Schedule, runCfg.Scenario)
	shutdown, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	var src sim.DataSource = sim.NewInlineSource(*runCfg)
	locations := cfg.Locations
	if runCfg.Artifact != "" {
		store, err := artifact.Open(runCfg.Artifact, artifact.WithLogger(log))
		if err != nil {
			return err
		}
		defer store.Close()
		src = store
		if len(locations) == 0 && runCfg.Location == "" {
			if locations, err = store.Locations(ctx); err != nil {
				return err
			}
		}
	}
	if len(locations) == 0 && runCfg.Location != "" {
		locations = []string{runCfg.Location}
	}
	if len(locations) == 0 {
		return errors.New("no locations to run")
	}
	if cfg.Draws < 1 {
		return fmt.Errorf("draws must be at least 1, got %d", cfg.Draws)
	}

	reg := prometheus.NewRegistry()
	engineMetrics, err := observability.NewEngineCollector(reg)
	if err != nil {
		return fmt.Errorf("engine metrics: %w", err)
	}
	runMetrics, err := observability.NewRunCollector(reg)
	if err != nil {
		return fmt.Errorf("run metrics: %w", err)
	}
	if srv := serveMetrics(cfg.MetricsAddr, engineMetrics, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info(ctx, "starting batch",
		logging.String("locations", strings.Join(locations, ",")),
		logging.Int("draws", cfg.Draws),
		logging.String("schedule", runCfg.Schedule),
		logging.String("scenario", runCfg.Scenario),
	)

	results := state.NewResultStore()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}
	for _, loc := range locations {
		for draw := cfg.FirstDraw; draw < cfg.FirstDraw+cfg.Draws; draw++ {
			one := *runCfg
			one.Location = loc
			one.Draw = draw
			g.Go(func() error {
				result := executeOne(gctx, one, src, log, engineMetrics, runMetrics)
				if err := results.Put(result); err != nil {
					return err
				}
				return gctx.Err()
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeResults(cfg.OutputPath, results.List()); err != nil {
		return err
	}
	if n := results.Failures(); n > 0 {
		return fmt.Errorf("%d of %d runs failed", n, results.Len())
	}
	log.Info(ctx, "batch complete", logging.Int("runs", results.Len()))
	return nil
}

// executeOne sets up and runs a single draw. Failures are reported on the
// returned result so one bad location does not stop the batch.
func executeOne(
	ctx context.Context,
	cfg core.RunConfig,
	src sim.DataSource,
	log logging.Logger,
	engineMetrics *observability.EngineCollector,
	runMetrics *observability.RunCollector,
) *state.RunResult {
	r, err := sim.NewRun(ctx, cfg, src,
		sim.WithLogger(log),
		sim.WithStepMetrics(engineMetrics),
		sim.WithRunMetrics(runMetrics),
	)
	if err != nil {
		runMetrics.RunFailedSetup(err)
		return &state.RunResult{
			Location: cfg.Location,
			Draw:     cfg.Draw,
			Schedule: cfg.Schedule,
			Scenario: cfg.Scenario,
			Error:    err.Error(),
		}
	}
	result, _ := r.Execute(ctx)
	return result
}

func loadConfig(path string) (*core.RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run config %q: %w", path, err)
	}
	defer f.Close()
	cfg, err := core.LoadRunConfig(f)
	if err != nil {
		return nil, fmt.Errorf("load run config %q: %w", path, err)
	}
	return cfg, nil
}

type resultsFile struct {
	Results []*state.RunResult `yaml:"results"`
}

func writeResults(path string, results []*state.RunResult) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output %q: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(resultsFile{Results: results}); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return enc.Close()
}

func serveMetrics(addr string, collector *observability.EngineCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
