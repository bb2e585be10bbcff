package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitestock/sitestock/internal/platform/db"
	"github.com/sitestock/sitestock/internal/shared"
)

var (
	// ErrNotFound indicates an unknown project ID.
	ErrNotFound = fmt.Errorf("project %w", shared.ErrNotFound)
	// ErrExists indicates a project ID already in use.
	ErrExists = errors.New("project: already exists")
)

// Repository stores each project's state as one JSONB document.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row-locked operations used inside a write.
type TxRepository interface {
	LoadForUpdate(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, id string, state State) error
}

type txRepo struct {
	tx pgx.Tx
}

// Create inserts a new project row.
func (r *Repository) Create(ctx context.Context, id string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("project: encode state: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO project_inventories (id, state) VALUES ($1, $2)`, id, payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == shared.UniqueViolation {
			return ErrExists
		}
		return fmt.Errorf("project: insert: %w", err)
	}
	return nil
}

// Load reads a project's state without locking it.
func (r *Repository) Load(ctx context.Context, id string) (State, error) {
	return scanState(r.pool.QueryRow(ctx, `SELECT state FROM project_inventories WHERE id = $1`, id))
}

// IDs lists every project ID in creation order.
func (r *Repository) IDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM project_inventories ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	return ids, nil
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) LoadForUpdate(ctx context.Context, id string) (State, error) {
	return scanState(t.tx.QueryRow(ctx, `SELECT state FROM project_inventories WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Save(ctx context.Context, id string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("project: encode state: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE project_inventories SET state = $2, version = version + 1, updated_at = NOW() WHERE id = $1`, id, payload)
	if err != nil {
		return fmt.Errorf("project: save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanState(row pgx.Row) (State, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("project: load: %w", err)
	}
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return State{}, fmt.Errorf("project: decode state: %w", err)
	}
	return state, nil
}
