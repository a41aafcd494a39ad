// Package storage persists ingested events and fetched images. The SQL store
// carries the uniqueness constraint on (title, start_time, city) that backs
// the duplicate filter against concurrent runs.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/4Achar-SE4031/4Achar-Backend/internal/config"
	"github.com/4Achar-SE4031/4Achar-Backend/pkg/types"
)

// ErrDuplicateEvent is returned by Insert when the store already holds an
// event with the same natural key. Callers treat it as "already known".
var ErrDuplicateEvent = errors.New("event already exists")

// EventStore is the persistence boundary used by the ingestion pipeline:
// one insert, one natural-key lookup. The pipeline never mutates existing
// records through it.
type EventStore interface {
	Insert(ctx context.Context, event *types.Event) error
	Exists(ctx context.Context, key types.NaturalKey) (bool, error)
}

// SQLStore persists events into a relational database via database/sql.
type SQLStore struct {
	db          *sql.DB
	autoMigrate bool
}

// NewSQLStore opens the configured database, optionally creating it and its
// schema when missing.
func NewSQLStore(cfg config.SQLConfig) (*SQLStore, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("sql config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if cfg.CreateIfMissing && shouldAttemptCreateDatabase(cfg.Driver, err) {
			_ = db.Close()
			if err := createDatabase(ctx, cfg); err != nil {
				return nil, err
			}
			db, err = sql.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("open sql connection: %w", err)
			}
			if err := db.PingContext(ctx); err != nil {
				return nil, fmt.Errorf("ping sql connection: %w", err)
			}
		} else {
			return nil, fmt.Errorf("ping sql connection: %w", err)
		}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}
	store := &SQLStore{
		db:          db,
		autoMigrate: cfg.AutoMigrate,
	}
	if cfg.AutoMigrate {
		if err := store.ensureSchema(context.Background()); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Insert writes the event and assigns its surrogate ID. A unique-index
// violation on the natural key maps to ErrDuplicateEvent rather than a hard
// failure, so a concurrent run racing on the same event degrades to a skip.
func (s *SQLStore) Insert(ctx context.Context, event *types.Event) error {
	if s == nil || s.db == nil {
		return errors.New("sql store not initialised")
	}
	err := s.insertEvent(ctx, event)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrDuplicateEvent
	}
	if s.autoMigrate && isUndefinedTableErr(err) {
		if schemaErr := s.ensureSchema(ctx); schemaErr != nil {
			return fmt.Errorf("ensure schema: %w", schemaErr)
		}
		if retryErr := s.insertEvent(ctx, event); retryErr != nil {
			if isUniqueViolation(retryErr) {
				return ErrDuplicateEvent
			}
			return fmt.Errorf("insert event: %w", retryErr)
		}
		return nil
	}
	return fmt.Errorf("insert event: %w", err)
}

func (s *SQLStore) insertEvent(ctx context.Context, event *types.Event) error {
	query := `
        INSERT INTO events (
            title, description, start_time, city, location, address,
            category, ticket_prices, latitude, longitude,
            cover_image, card_image, source_url
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id
    `
	prices := make([]int64, len(event.TicketPrices))
	for i, p := range event.TicketPrices {
		prices[i] = int64(p)
	}
	return s.db.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.StartTime,
		event.City,
		event.Location,
		event.Address,
		event.Category,
		pq.Array(prices),
		event.Latitude,
		event.Longitude,
		event.CoverImage,
		event.CardImage,
		event.SourceURL,
	).Scan(&event.ID)
}

// Exists reports whether an event with the given natural key is persisted.
func (s *SQLStore) Exists(ctx context.Context, key types.NaturalKey) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("sql store not initialised")
	}
	query := `SELECT EXISTS (SELECT 1 FROM events WHERE title = $1 AND start_time = $2 AND city = $3)`
	var found bool
	if err := s.db.QueryRowContext(ctx, query, key.Title, key.StartTime, key.City).Scan(&found); err != nil {
		if s.autoMigrate && isUndefinedTableErr(err) {
			if schemaErr := s.ensureSchema(ctx); schemaErr != nil {
				return false, fmt.Errorf("ensure schema: %w", schemaErr)
			}
			return false, nil
		}
		return false, fmt.Errorf("lookup event: %w", err)
	}
	return found, nil
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil || !s.autoMigrate {
		return nil
	}
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
		    id BIGSERIAL PRIMARY KEY,
		    title TEXT NOT NULL,
		    description TEXT NOT NULL DEFAULT '',
		    start_time TIMESTAMPTZ NOT NULL,
		    city TEXT NOT NULL,
		    location TEXT NOT NULL DEFAULT '',
		    address TEXT NOT NULL DEFAULT '',
		    category TEXT NOT NULL DEFAULT '',
		    ticket_prices BIGINT[] NOT NULL DEFAULT '{}',
		    latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		    longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		    cover_image TEXT NOT NULL DEFAULT '',
		    card_image TEXT NOT NULL DEFAULT '',
		    source_url TEXT NOT NULL DEFAULT '',
		    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_title_start_city ON events (title, start_time, city)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_time ON events (start_time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}

func shouldAttemptCreateDatabase(driver string, err error) bool {
	if !strings.EqualFold(driver, "postgres") {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "3D000"
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

func createDatabase(ctx context.Context, cfg config.SQLConfig) error {
	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return errors.New("dsn missing database name")
	}
	if strings.EqualFold(dbName, "postgres") {
		return fmt.Errorf("target database %q cannot be auto-created", dbName)
	}
	parsed.Path = "/postgres"
	adminDSN := parsed.String()
	adminDB, err := sql.Open(cfg.Driver, adminDSN)
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer adminDB.Close()
	if err := adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping admin database: %w", err)
	}
	stmt := fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))
	if _, err := adminDB.ExecContext(ctx, stmt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}
