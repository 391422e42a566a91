package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store is the Postgres-backed cart slot. Each cart is one row keyed by the
// session's cart key, with the line items held as JSONB. Saves upsert;
// concurrent writers are last-write-wins.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

type cartRow struct {
	Items    []byte `db:"items"`
	VendorID string `db:"vendor_id"`
}

// Load reads the stored cart state for a key, (nil, nil) when absent.
func (s *Store) Load(ctx context.Context, key string) (*models.CartState, error) {
	var row cartRow
	err := s.db.GetContext(ctx, &row,
		"SELECT items, vendor_id FROM carts WHERE cart_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	state := models.CartState{VendorID: row.VendorID}
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &state.Items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
		}
	}
	return &state, nil
}

// Save upserts the cart state for a key.
func (s *Store) Save(ctx context.Context, key string, state *models.CartState) error {
	items, err := json.Marshal(state.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO carts (cart_key, items, vendor_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (cart_key) DO UPDATE SET
			items = $2,
			vendor_id = $3,
			updated_at = NOW()`,
		key, items, state.VendorID)
	if err != nil {
		return fmt.Errorf("failed to write cart: %w", err)
	}
	return nil
}

// Delete removes the stored cart state for a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM carts WHERE cart_key = $1", key)
	return err
}
