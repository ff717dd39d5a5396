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

	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/proposal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	keyLastProposalID = "last_proposal_id"
	keyPolicy         = "policy"
)

// SQLiteStore persists the proposal table, the id sequence and the active
// policy.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
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

// Save writes the full application state in one transaction. It satisfies
// the engine's Checkpointer contract.
func (s *SQLiteStore) Save(ctx context.Context, snapshot proposal.Snapshot, policy governance.Policy) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM proposals"); err != nil {
		return fmt.Errorf("failed to clear proposals: %w", err)
	}

	insert := `
		INSERT INTO proposals (id, state, category, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, p := range snapshot.Proposals {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to serialize proposal %d: %w", p.ID, err)
		}
		category, _ := p.Payload.Category()
		if _, err := tx.ExecContext(ctx, insert,
			p.ID, string(p.State), string(category), string(data), p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to save proposal %d: %w", p.ID, err)
		}
	}

	if err := putState(ctx, tx, keyLastProposalID, fmt.Sprintf("%d", snapshot.LastID)); err != nil {
		return err
	}
	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to serialize policy: %w", err)
	}
	if err := putState(ctx, tx, keyPolicy, string(policyJSON)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

func putState(ctx context.Context, tx *sql.Tx, key, value string) error {
	query := `
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Load reads the persisted application state. The boolean result is false
// when the database holds no state yet (fresh installation).
func (s *SQLiteStore) Load(ctx context.Context) (proposal.Snapshot, governance.Policy, bool, error) {
	if s.db == nil {
		return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("database not initialized")
	}

	var policyJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM app_state WHERE key = ?", keyPolicy).Scan(&policyJSON)
	if err == sql.ErrNoRows {
		return proposal.Snapshot{}, governance.Policy{}, false, nil
	}
	if err != nil {
		return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("failed to load policy: %w", err)
	}
	var policy governance.Policy
	if err := json.Unmarshal([]byte(policyJSON), &policy); err != nil {
		return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("failed to parse stored policy: %w", err)
	}

	var snapshot proposal.Snapshot
	var lastID string
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM app_state WHERE key = ?", keyLastProposalID).Scan(&lastID)
	if err != nil && err != sql.ErrNoRows {
		return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("failed to load id sequence: %w", err)
	}
	if err == nil {
		if _, err := fmt.Sscanf(lastID, "%d", &snapshot.LastID); err != nil {
			return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("corrupt id sequence %q: %w", lastID, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT data FROM proposals ORDER BY id ASC")
	if err != nil {
		return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("failed to load proposals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("failed to scan proposal: %w", err)
		}
		var p proposal.Proposal
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("failed to parse stored proposal: %w", err)
		}
		snapshot.Proposals = append(snapshot.Proposals, p)
	}
	if err := rows.Err(); err != nil {
		return proposal.Snapshot{}, governance.Policy{}, false, fmt.Errorf("failed to read proposals: %w", err)
	}

	return snapshot, policy, true, nil
}
