// Command make-artifact loads CSV extracts into an artifact database.
//
//	make-artifact -out kenya.db coverage.csv births.csv population.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/signalsfoundry/vaccine-rollout-sim/internal/artifact"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
)

func main() {
	out := flag.String("out", "artifact.db", "Artifact database to create or update")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()
	if err := run(ctx, *out, flag.Args(), log); err != nil {
		log.Error(ctx, "make-artifact failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, out string, inputs []string, log logging.Logger) error {
	if len(inputs) == 0 {
		return errors.New("no input files")
	}
	store, err := artifact.Open(out, artifact.WithLogger(log))
	if err != nil {
		return err
	}
	defer store.Close()

	total := 0
	for _, path := range inputs {
		n, err := load(ctx, store, path)
		if err != nil {
			return err
		}
		log.Info(ctx, "loaded extract", logging.String("path", path), logging.Int("rows", n))
		total += n
	}

	locations, err := store.Locations(ctx)
	if err != nil {
		return err
	}
	log.Info(ctx, "artifact written",
		logging.String("path", out),
		logging.Int("rows", total),
		logging.Int("locations", len(locations)),
	)
	return nil
}

func load(ctx context.Context, store *artifact.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open extract %q: %w", path, err)
	}
	defer f.Close()

	rows, err := artifact.ReadCSV(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if err := store.Put(ctx, rows); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return len(rows), nil
}
