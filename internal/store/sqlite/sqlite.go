package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"tradeimpact/internal/model"
)

const periodLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertPrices(ctx context.Context, points []model.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.upsert(ctx, `
		INSERT INTO commodity_prices (period, commodity, price, ingested_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(period, commodity)
		DO UPDATE SET
			price = excluded.price,
			ingested_at = excluded.ingested_at
	`, len(points), func(i int) []any {
		point := points[i]
		var price any
		if point.Price.Valid {
			price = point.Price.Float64
		}
		return []any{point.Period.UTC().Format(periodLayout), point.Commodity, price, now}
	})
}

func (s *Store) ListPrices(ctx context.Context) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period, commodity, price
		FROM commodity_prices
		ORDER BY period, commodity
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]model.PricePoint, 0)
	for rows.Next() {
		var (
			period string
			point  model.PricePoint
		)
		if err := rows.Scan(&period, &point.Commodity, &point.Price); err != nil {
			return nil, err
		}
		point.Period, err = time.Parse(periodLayout, period)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad period %q: %w", period, err)
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

func (s *Store) UpsertIndicators(ctx context.Context, values []model.IndicatorValue) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.upsert(ctx, `
		INSERT INTO indicator_values (indicator, iso3, year, value, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(indicator, iso3, year)
		DO UPDATE SET
			value = excluded.value,
			ingested_at = excluded.ingested_at
	`, len(values), func(i int) []any {
		value := values[i]
		return []any{value.Indicator, value.ISO3, value.Year, value.Value, now}
	})
}

func (s *Store) ListIndicator(ctx context.Context, indicator string) ([]model.IndicatorValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT indicator, iso3, year, value
		FROM indicator_values
		WHERE indicator = ?
		ORDER BY iso3, year
	`, indicator)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]model.IndicatorValue, 0)
	for rows.Next() {
		var value model.IndicatorValue
		if err := rows.Scan(&value.Indicator, &value.ISO3, &value.Year, &value.Value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

func (s *Store) UpsertLabels(ctx context.Context, labels []model.Label) error {
	if len(labels) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.upsert(ctx, `
		INSERT INTO country_labels (kind, iso3, value, ingested_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, iso3)
		DO UPDATE SET
			value = excluded.value,
			ingested_at = excluded.ingested_at
	`, len(labels), func(i int) []any {
		label := labels[i]
		return []any{label.Kind, label.ISO3, label.Value, now}
	})
}

func (s *Store) ListLabels(ctx context.Context, kind string) ([]model.Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, iso3, value
		FROM country_labels
		WHERE kind = ?
		ORDER BY iso3
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make([]model.Label, 0)
	for rows.Next() {
		var label model.Label
		if err := rows.Scan(&label.Kind, &label.ISO3, &label.Value); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (s *Store) RecordRun(ctx context.Context, run model.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, started_at, finished_at, files)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Command, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Files)
	return err
}

// upsert runs one prepared statement n times inside a transaction.
func (s *Store) upsert(ctx context.Context, query string, n int, args func(int) []any) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err = stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// migrations are applied in order; user_version records how many have run.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS commodity_prices (
			period TEXT NOT NULL,
			commodity TEXT NOT NULL,
			price REAL,
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (period, commodity)
		);`,
		`CREATE TABLE IF NOT EXISTS indicator_values (
			indicator TEXT NOT NULL,
			iso3 TEXT NOT NULL,
			year INTEGER NOT NULL,
			value REAL NOT NULL,
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (indicator, iso3, year)
		);`,
	},
	{
		`CREATE TABLE IF NOT EXISTS country_labels (
			kind TEXT NOT NULL,
			iso3 TEXT NOT NULL,
			value TEXT NOT NULL,
			ingested_at TEXT NOT NULL,
			PRIMARY KEY (kind, iso3)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			files INTEGER NOT NULL
		);`,
	},
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`PRAGMA user_version;`).Scan(&version); err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, statement := range migrations[i] {
			if _, err := tx.Exec(statement); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("sqlite: migration %d: %w", i+1, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, i+1)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// Version reports how many migrations have been applied.
func (s *Store) Version(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version)
	return version, err
}
