package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"phenotune/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore keeps trials in the trials table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, applies pending migrations and returns the store.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = 4
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const upsertTrial = `
INSERT INTO trials (run_id, trial_id, trial_index, status, val_loss, document, started_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (run_id, trial_id) DO UPDATE SET
    trial_index = EXCLUDED.trial_index,
    status      = EXCLUDED.status,
    val_loss    = EXCLUDED.val_loss,
    document    = EXCLUDED.document,
    updated_at  = NOW()`

// SaveTrial upserts the trial document.
func (ps *PostgresStore) SaveTrial(ctx context.Context, t *Trial) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode trial %s: %w", t.TrialID, err)
	}
	var valLoss sql.NullFloat64
	if v := float64(t.ValLoss); t.Completed() && !math.IsNaN(v) && !math.IsInf(v, 0) {
		valLoss = sql.NullFloat64{Float64: v, Valid: true}
	}
	if _, err := ps.db.ExecContext(ctx, upsertTrial,
		t.RunID, t.TrialID, t.Index, t.Status, valLoss, doc, t.StartedAt); err != nil {
		return fmt.Errorf("failed to save trial %s: %w", t.TrialID, err)
	}
	return nil
}

// LoadTrials returns the run's trials in index order.
func (ps *PostgresStore) LoadTrials(ctx context.Context, runID string) ([]*Trial, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT document FROM trials WHERE run_id = $1 ORDER BY trial_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var trials []*Trial
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		var t Trial
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("failed to decode trial: %w", err)
		}
		trials = append(trials, &t)
	}
	return trials, rows.Err()
}

// Close closes the connection pool.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
