// Package storage persists completed capture cycles so they can be shared.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/spherical/glance/internal/domain"
)

// ErrNotFound is returned by Get for unknown capture ids.
var ErrNotFound = errors.New("capture not found")

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	id          TEXT PRIMARY KEY,
	captured_at TEXT NOT NULL,
	metadata    TEXT NOT NULL,
	recognized  TEXT NOT NULL,
	translated  TEXT NOT NULL
)`

// Archive stores capture records in sqlite or postgres.
type Archive struct {
	db *sql.DB
}

// Open connects to the archive database and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Archive, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unsupported archive driver %q", driver), nil)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if driver == DriverSQLite {
		// each :memory: connection is a separate database
		db.SetMaxOpenConns(1)
	}

	a, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// New wraps an open database and creates the schema if needed.
func New(ctx context.Context, db *sql.DB) (*Archive, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save inserts rec. A record without an id gets a new uuid.
func (a *Archive) Save(ctx context.Context, rec domain.CaptureRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		return domain.ValidationError("capture id must be a uuid", err)
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	recognized, err := json.Marshal(nonNil(rec.Recognized))
	if err != nil {
		return fmt.Errorf("encode recognized: %w", err)
	}
	translated, err := json.Marshal(nonNil(rec.Translated))
	if err != nil {
		return fmt.Errorf("encode translated: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO captures (id, captured_at, metadata, recognized, translated) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.CapturedAt.UTC().Format(time.RFC3339Nano), string(metadata), string(recognized), string(translated),
	)
	if err != nil {
		return fmt.Errorf("insert capture %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads the record with the given id.
func (a *Archive) Get(ctx context.Context, id string) (*domain.CaptureRecord, error) {
	var (
		rec                                          domain.CaptureRecord
		capturedAt, metadata, recognized, translated string
	)
	err := a.db.QueryRowContext(ctx,
		`SELECT id, captured_at, metadata, recognized, translated FROM captures WHERE id = $1`, id,
	).Scan(&rec.ID, &capturedAt, &metadata, &recognized, &translated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query capture %s: %w", id, err)
	}

	if rec.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt); err != nil {
		return nil, fmt.Errorf("parse captured_at: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(recognized), &rec.Recognized); err != nil {
		return nil, fmt.Errorf("decode recognized: %w", err)
	}
	if err := json.Unmarshal([]byte(translated), &rec.Translated); err != nil {
		return nil, fmt.Errorf("decode translated: %w", err)
	}
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
