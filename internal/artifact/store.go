// Package artifact stores the per-location input data a run needs: coverage
// covariates, live births and population structure. It is a thin gorm layer
// over a SQLite file so an artifact can be built once and shared by every
// draw of a location.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/signalsfoundry/vaccine-rollout-sim/core"
	"github.com/signalsfoundry/vaccine-rollout-sim/internal/logging"
	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// ErrNotFound is returned when a location has no rows for a key.
var ErrNotFound = errors.New("artifact: not found")

// Row is one value of one keyed table for a location, year and
// demographic cell.
type Row struct {
	ID       uint    `gorm:"primaryKey"`
	Location string  `gorm:"not null;uniqueIndex:idx_artifact_cell,priority:1"`
	Key      string  `gorm:"column:artifact_key;not null;uniqueIndex:idx_artifact_cell,priority:2"`
	Year     int     `gorm:"not null;uniqueIndex:idx_artifact_cell,priority:3"`
	Sex      string  `gorm:"not null;uniqueIndex:idx_artifact_cell,priority:4"`
	AgeStart float64 `gorm:"not null;uniqueIndex:idx_artifact_cell,priority:5"`
	AgeEnd   float64
	Value    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name.
func (Row) TableName() string { return "artifact_rows" }

// Store reads and writes artifact rows.
type Store struct {
	db  *gorm.DB
	log logging.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open opens (creating if needed) the SQLite artifact at path and migrates
// its schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("artifact: migrate %s: %w", path, err)
	}
	s := &Store{db: db, log: logging.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Put upserts rows. A row replaces any existing value for the same
// location, key, year, sex and age start.
func (s *Store) Put(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].Sex == "" {
			rows[i].Sex = model.SexAll.String()
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "location"}, {Name: "artifact_key"}, {Name: "year"}, {Name: "sex"}, {Name: "age_start"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"age_end", "value", "updated_at"}),
		}).CreateInBatches(&rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("artifact: put %d rows: %w", len(rows), err)
	}
	s.log.Debug(ctx, "artifact rows written", logging.Int("rows", len(rows)))
	return nil
}

// Locations lists the locations present in the artifact.
func (s *Store) Locations(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Model(&Row{}).Distinct("location").Order("location").Pluck("location", &out).Error
	if err != nil {
		return nil, fmt.Errorf("artifact: list locations: %w", err)
	}
	return out, nil
}

// Covariate returns a coverage covariate for location as a year series.
// Coverage tables are filtered to the age-zero slice; a female slice is
// preferred because sources repeat the same values for each sex.
func (s *Store) Covariate(ctx context.Context, location string, cov model.Covariate) (core.YearSeries, error) {
	for _, sex := range []model.Sex{model.SexFemale, model.SexAll} {
		var rows []Row
		err := s.db.WithContext(ctx).
			Where("location = ? AND artifact_key = ? AND sex = ? AND age_start = 0", location, cov.ArtifactKey(), sex.String()).
			Order("year").
			Find(&rows).Error
		if err != nil {
			return core.YearSeries{}, fmt.Errorf("artifact: read %s for %s: %w", cov, location, err)
		}
		if len(rows) > 0 {
			byYear := make(map[int]float64, len(rows))
			for _, r := range rows {
				byYear[r.Year] = r.Value
			}
			return core.NewYearSeries(byYear), nil
		}
	}
	return core.YearSeries{}, fmt.Errorf("%w: %s for %s", ErrNotFound, cov, location)
}

// Covariates returns every coverage covariate stored for location. Missing
// covariates are left out; ComposeCoverage reports the ones a schedule
// needs.
func (s *Store) Covariates(ctx context.Context, location string) (map[model.Covariate]core.YearSeries, error) {
	out := make(map[model.Covariate]core.YearSeries, len(model.Covariates))
	for _, cov := range model.Covariates {
		series, err := s.Covariate(ctx, location, cov)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[cov] = series
	}
	return out, nil
}

// LiveBirths returns total live births per year for location.
func (s *Store) LiveBirths(ctx context.Context, location string) (core.YearSeries, error) {
	return s.yearlyTotal(ctx, location, model.LiveBirthsKey)
}

// PopulationTotal returns the population of location in year, summed over
// every age and sex cell. Years outside the data use the nearest year.
func (s *Store) PopulationTotal(ctx context.Context, location string, year int) (float64, error) {
	series, err := s.yearlyTotal(ctx, location, model.PopulationStructureKey)
	if err != nil {
		return 0, err
	}
	return series.Value(year), nil
}

func (s *Store) yearlyTotal(ctx context.Context, location, key string) (core.YearSeries, error) {
	type total struct {
		Year  int
		Value float64
	}
	var totals []total
	err := s.db.WithContext(ctx).Model(&Row{}).
		Select("year, SUM(value) AS value").
		Where("location = ? AND artifact_key = ?", location, key).
		Group("year").
		Order("year").
		Scan(&totals).Error
	if err != nil {
		return core.YearSeries{}, fmt.Errorf("artifact: read %s for %s: %w", key, location, err)
	}
	if len(totals) == 0 {
		return core.YearSeries{}, fmt.Errorf("%w: %s for %s", ErrNotFound, key, location)
	}
	byYear := make(map[int]float64, len(totals))
	for _, t := range totals {
		byYear[t.Year] = t.Value
	}
	return core.NewYearSeries(byYear), nil
}
