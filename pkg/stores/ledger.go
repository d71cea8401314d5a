// Package stores persists the generation ledger: one row per completed
// bundle generation, used by the history command. Secrets are never
// stored.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Generation is one recorded bundle generation.
type Generation struct {
	// ID is the run identifier.
	ID string `json:"id"`

	// CreatedAt is when the bundle was written.
	CreatedAt time.Time `json:"created_at"`

	// InstallDir is where the bundle was written.
	InstallDir string `json:"install_dir"`

	// HostAddress is the resolved host address.
	HostAddress string `json:"host_address"`

	// OpenAccess is true when no client whitelist was supplied.
	OpenAccess bool `json:"open_access"`

	// AddressDegraded is true when the placeholder address was used.
	AddressDegraded bool `json:"address_degraded"`

	// RuleCount is the number of compiled access rules.
	RuleCount int `json:"rule_count"`

	// Artifacts lists the artifact paths written.
	Artifacts []string `json:"artifacts"`
}

// Ledger is the SQLite-backed generation ledger.
type Ledger struct {
	db   *sql.DB
	path string
}

// NewLedger creates a ledger instance for the database at path. Call
// Init before use.
func NewLedger(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	return &Ledger{path: path}, nil
}

// Init opens the database and applies connection-level settings.
func (l *Ledger) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", l.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping ledger: %w", err)
	}

	l.db = db
	return nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Migrate applies embedded schema migrations.
func (l *Ledger) Migrate(_ context.Context) error {
	if l.db == nil {
		return fmt.Errorf("ledger not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(l.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Record appends one generation row.
func (l *Ledger) Record(ctx context.Context, g *Generation) error {
	if l.db == nil {
		return fmt.Errorf("ledger not initialized")
	}
	artifacts, err := json.Marshal(g.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifact list: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO generations (id, created_at, install_dir, host_address, open_access, address_degraded, rule_count, artifacts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.CreatedAt.UTC().Format(time.RFC3339), g.InstallDir, g.HostAddress,
		g.OpenAccess, g.AddressDegraded, g.RuleCount, string(artifacts))
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// List returns recorded generations, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]Generation, error) {
	if l.db == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, created_at, install_dir, host_address, open_access, address_degraded, rule_count, artifacts
		FROM generations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var g Generation
		var createdAt, artifacts string
		if err := rows.Scan(&g.ID, &createdAt, &g.InstallDir, &g.HostAddress,
			&g.OpenAccess, &g.AddressDegraded, &g.RuleCount, &artifacts); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse generation timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(artifacts), &g.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to decode artifact list: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
