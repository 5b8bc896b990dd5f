// Package postgres stores saved comparisons. Only the reference to a
// comparison is kept (entity ids, view, tier set); the matrix is rebuilt from
// the current catalog whenever a saved comparison is opened.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"saas-compare/decision/comparison"
	cmperrors "saas-compare/pkg/errors"
)

// SavedComparison is a named, replayable comparison request.
type SavedComparison struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	View      comparison.View `json:"view"`
	TierSet   string          `json:"tier_set,omitempty"`
	EntityIDs []string        `json:"entity_ids"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks a comparison before it is stored.
func (c *SavedComparison) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("comparison name is required")
	}
	if _, err := comparison.ParseView(string(c.View)); err != nil {
		return err
	}
	if len(c.EntityIDs) == 0 {
		return fmt.Errorf("comparison needs at least one entity id")
	}
	return nil
}

// Store implements saved comparison persistence on Postgres.
type Store struct {
	db *sql.DB
}

// Open connects using a postgres:// URL.
func Open(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

const createTable = `
	CREATE TABLE IF NOT EXISTS saved_comparisons (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL,
		view        TEXT NOT NULL,
		tier_set    TEXT NOT NULL DEFAULT '',
		entity_ids  TEXT[] NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Migrate creates the table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create saved_comparisons: %w", err)
	}
	return nil
}

// Save inserts c, assigning an ID and creation time when unset.
func (s *Store) Save(ctx context.Context, c *SavedComparison) error {
	view, err := comparison.ParseView(string(c.View))
	if err != nil {
		return err
	}
	c.View = view
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_comparisons (id, name, view, tier_set, entity_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Name, string(c.View), c.TierSet, pq.Array(c.EntityIDs), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}
	return nil
}

// Get loads a comparison by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*SavedComparison, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, view, tier_set, entity_ids, created_at
		FROM saved_comparisons WHERE id = $1
	`, id)
	c, err := scanComparison(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmperrors.NewNotFoundError("comparison", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}
	return c, nil
}

// List returns the newest comparisons first.
func (s *Store) List(ctx context.Context, limit int) ([]*SavedComparison, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, view, tier_set, entity_ids, created_at
		FROM saved_comparisons ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comparisons: %w", err)
	}
	defer rows.Close()

	out := make([]*SavedComparison, 0)
	for rows.Next() {
		c, err := scanComparison(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a comparison.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_comparisons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comparison: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return cmperrors.NewNotFoundError("comparison", id.String())
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanComparison(row scanner) (*SavedComparison, error) {
	var c SavedComparison
	var view string
	if err := row.Scan(&c.ID, &c.Name, &view, &c.TierSet, pq.Array(&c.EntityIDs), &c.CreatedAt); err != nil {
		return nil, err
	}
	c.View = comparison.View(view)
	return &c, nil
}
