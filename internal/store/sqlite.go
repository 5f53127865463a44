package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS aqi_records (
	id         TEXT PRIMARY KEY,
	city       TEXT NOT NULL,
	city_lower TEXT NOT NULL,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	timezone   TEXT NOT NULL DEFAULT '',
	timestamp  INTEGER NOT NULL,
	aqi        REAL,
	category   TEXT NOT NULL,
	pollutants TEXT NOT NULL,
	weather    TEXT NOT NULL,
	source     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_aqi_records_city_ts ON aqi_records(city_lower, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_aqi_records_ts ON aqi_records(timestamp DESC);`

// SQLiteStore implements airquality.Store on a local SQLite file using the
// pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil && logger != nil {
		logger.Warn("could not set sqlite WAL mode", "error", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Persist inserts every record in one transaction.
func (s *SQLiteStore) Persist(ctx context.Context, records []airquality.Record) (ids []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO aqi_records
		(id, city, city_lower, latitude, longitude, timezone, timestamp, aqi, category, pollutants, weather, source, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().UnixMilli()
	ids = make([]string, 0, len(records))

	for _, r := range records {
		pollutants, err := json.Marshal(r.Pollutants)
		if err != nil {
			return nil, fmt.Errorf("encode pollutants: %w", err)
		}
		weather := r.Weather
		if weather == nil {
			weather = airquality.Weather{}
		}
		weatherJSON, err := json.Marshal(weather)
		if err != nil {
			return nil, fmt.Errorf("encode weather: %w", err)
		}

		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx,
			id,
			r.Location.City,
			strings.ToLower(r.Location.City),
			r.Location.Latitude,
			r.Location.Longitude,
			r.Location.Timezone,
			r.Timestamp.UTC().UnixMilli(),
			nullableFloat(r.AQI),
			string(r.Category),
			string(pollutants),
			string(weatherJSON),
			r.Source,
			createdAt,
		); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Query returns matching rows, newest timestamp first.
func (s *SQLiteStore) Query(ctx context.Context, filter airquality.Filter) ([]airquality.Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.CityContains != "" {
		// SQLite's lower() folds ASCII only, so both sides are folded in Go.
		where = append(where, "instr(city_lower, ?) > 0")
		args = append(args, strings.ToLower(filter.CityContains))
	}
	if filter.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.From.UTC().UnixMilli())
	}
	if filter.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.To.UTC().UnixMilli())
	}

	query := `SELECT id, city, latitude, longitude, timezone, timestamp, aqi, category, pollutants, weather, source, created_at
		FROM aqi_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, filter.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]airquality.Record, 0)
	for rows.Next() {
		var (
			r                   airquality.Record
			ts, createdAt       int64
			aqi                 sql.NullFloat64
			category            string
			pollutants, weather string
		)
		if err := rows.Scan(
			&r.ID,
			&r.Location.City,
			&r.Location.Latitude,
			&r.Location.Longitude,
			&r.Location.Timezone,
			&ts,
			&aqi,
			&category,
			&pollutants,
			&weather,
			&r.Source,
			&createdAt,
		); err != nil {
			return nil, err
		}

		r.Timestamp = time.UnixMilli(ts).UTC()
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		r.Category = airquality.Category(category)
		if aqi.Valid {
			v := aqi.Float64
			r.AQI = &v
		}
		if err := json.Unmarshal([]byte(pollutants), &r.Pollutants); err != nil {
			return nil, fmt.Errorf("decode pollutants for %s: %w", r.ID, err)
		}
		r.Weather = airquality.Weather{}
		if err := json.Unmarshal([]byte(weather), &r.Weather); err != nil {
			return nil, fmt.Errorf("decode weather for %s: %w", r.ID, err)
		}

		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
