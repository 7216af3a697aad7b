// Package holdings tracks XRP held on exchange wallets and keeps one snapshot per Pacific
// calendar date.
package holdings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"xrp_etf_backend/models"
)

// MaxSnapshots is how many dates are retained
const MaxSnapshots = 90

// memoryDSN opens a private in-memory database. It lives as long as its single connection.
const memoryDSN = "file::memory:?mode=memory"

// Store keeps snapshots keyed by date
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens an empty in-memory store
func NewStore() (*Store, error) {
	db, err := sql.Open("sqlite3", memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping snapshot store: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) createTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := `
		CREATE TABLE IF NOT EXISTS exchange_snapshots (
			date VARCHAR PRIMARY KEY,
			total VARCHAR NOT NULL,
			per_exchange TEXT NOT NULL,
			taken_at VARCHAR NOT NULL
		)
	`
	if _, err := s.db.Exec(table); err != nil {
		return fmt.Errorf("failed to create exchange_snapshots table: %w", err)
	}
	return nil
}

// Upsert stores snap under its date, replacing any snapshot already taken that day, then
// evicts the oldest dates beyond MaxSnapshots.
func (s *Store) Upsert(ctx context.Context, snap models.ExchangeHoldingsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	perExchange, err := json.Marshal(snap.PerExchange)
	if err != nil {
		return fmt.Errorf("failed to encode per-exchange balances: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot upsert: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT OR REPLACE INTO exchange_snapshots (date, total, per_exchange, taken_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, snap.Date, snap.Total.String(), string(perExchange), snap.TakenAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.Date, err)
	}

	evict := `DELETE FROM exchange_snapshots WHERE date NOT IN (SELECT date FROM exchange_snapshots ORDER BY date DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, evict, MaxSnapshots); err != nil {
		return fmt.Errorf("failed to evict old snapshots: %w", err)
	}
	return tx.Commit()
}

// List returns up to limit of the most recent snapshots, oldest first
func (s *Store) List(ctx context.Context, limit int) ([]models.ExchangeHoldingsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > MaxSnapshots {
		limit = MaxSnapshots
	}

	query := `
		SELECT date, total, per_exchange, taken_at FROM (
			SELECT * FROM exchange_snapshots ORDER BY date DESC LIMIT ?
		) ORDER BY date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.ExchangeHoldingsSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Latest returns the most recent snapshot
func (s *Store) Latest(ctx context.Context) (*models.ExchangeHoldingsSnapshot, bool, error) {
	snaps, err := s.List(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return nil, false, err
	}
	return &snaps[0], true, nil
}

// Count returns the number of stored dates
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchange_snapshots").Scan(&count)
	return count, err
}

func scanSnapshot(rows *sql.Rows) (models.ExchangeHoldingsSnapshot, error) {
	var (
		snap                        models.ExchangeHoldingsSnapshot
		total, perExchange, takenAt string
	)
	if err := rows.Scan(&snap.Date, &total, &perExchange, &takenAt); err != nil {
		return snap, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	var err error
	if snap.Total, err = decimal.NewFromString(total); err != nil {
		return snap, fmt.Errorf("snapshot %s: bad total %q: %w", snap.Date, total, err)
	}
	if err := json.Unmarshal([]byte(perExchange), &snap.PerExchange); err != nil {
		return snap, fmt.Errorf("snapshot %s: bad per-exchange balances: %w", snap.Date, err)
	}
	if snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
		return snap, fmt.Errorf("snapshot %s: bad taken_at %q: %w", snap.Date, takenAt, err)
	}
	return snap, nil
}
