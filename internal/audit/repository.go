package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const timelineSQL = `SELECT occurred_at, actor, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR entity_id = $5)
  AND ($6::text IS NULL OR action = $6)
ORDER BY occurred_at DESC, id DESC
OFFSET $7
LIMIT $8`

// PgRepository reads audit_logs from Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Postgres-backed timeline repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Timeline runs q against audit_logs.
func (r *PgRepository) Timeline(ctx context.Context, q Query) ([]TimelineRow, error) {
	limit := pgtype.Int4{}
	if q.Limit > 0 {
		limit = pgtype.Int4{Int32: int32(q.Limit), Valid: true}
	}
	rows, err := r.pool.Query(ctx, timelineSQL,
		toPgTime(q.From), toPgTime(q.To),
		optionalText(q.Actor), optionalText(q.Entity), optionalText(q.EntityID), optionalText(q.Action),
		q.Offset, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	return out, nil
}

func scanRow(row pgx.CollectableRow) (TimelineRow, error) {
	var (
		out  TimelineRow
		meta []byte
	)
	if err := row.Scan(&out.At, &out.Actor, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
		return TimelineRow{}, err
	}
	out.At = out.At.UTC()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &out.Meta); err != nil {
			return TimelineRow{}, fmt.Errorf("decode meta: %w", err)
		}
	}
	return out, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
