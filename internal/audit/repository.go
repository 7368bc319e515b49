package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs rows for the timeline.
type Repository interface {
	Window(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error)
	All(ctx context.Context, filters Filters) ([]Entry, error)
}

type repo struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres-backed audit repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repo{pool: pool}
}

const baseQuery = `
	SELECT occurred_at, actor_id, action, entity, entity_id, meta
	FROM audit_logs
	WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
	  AND ($2::timestamptz IS NULL OR occurred_at < $2 + INTERVAL '1 day')
	  AND ($3::bigint IS NULL OR actor_id = $3)
	  AND ($4::text IS NULL OR entity = $4)
	  AND ($5::text IS NULL OR action = $5)
	ORDER BY occurred_at DESC, id DESC`

func (r *repo) Window(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error) {
	query := baseQuery + ` OFFSET $6 LIMIT $7`
	rows, err := r.pool.Query(ctx, query,
		optionalTime(filters.From), optionalTime(filters.To),
		optionalInt(filters.ActorID), optionalText(filters.Entity), optionalText(filters.Action),
		offset, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline window: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *repo) All(ctx context.Context, filters Filters) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, baseQuery,
		optionalTime(filters.From), optionalTime(filters.To),
		optionalInt(filters.ActorID), optionalText(filters.Entity), optionalText(filters.Action))
	if err != nil {
		return nil, fmt.Errorf("audit: timeline export: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows rowScanner) ([]Entry, error) {
	out := make([]Entry, 0)
	for rows.Next() {
		var (
			entry Entry
			at    pgtype.Timestamptz
			meta  []byte
		)
		if err := rows.Scan(&at, &entry.ActorID, &entry.Action, &entry.Entity, &entry.EntityID, &meta); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		if at.Valid {
			entry.At = at.Time
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Meta); err != nil {
				entry.Meta = nil
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return out, nil
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func optionalInt(value int64) pgtype.Int8 {
	if value <= 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: value, Valid: true}
}
