package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-admin/vantage-admin/internal/platform/db"
)

// GrantStore persists the (role, item, permission) grant set. It is the only
// mutable state of the permission core; the query service reads it, the
// assignment service writes it, nothing else touches it.
type GrantStore interface {
	ListByRole(ctx context.Context, roleID int64) ([]Grant, error)
	Exists(ctx context.Context, roleID, itemID, permissionID int64) (bool, error)
	// Toggle flips the grant for the triple inside one transaction: read the
	// current state, compute the flip, apply it. Returns the new state.
	Toggle(ctx context.Context, roleID, itemID, permissionID int64) (bool, error)
	DeleteGrant(ctx context.Context, id uuid.UUID) error
	// DeleteOrphans removes grants whose role, item, or permission has been
	// retired out from under them by an external administrative process.
	DeleteOrphans(ctx context.Context) (int64, error)
}

// Store provides PostgreSQL backed grant persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListByRole returns every grant held by the role, ordered for stable output.
func (s *Store) ListByRole(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, role_id, item_id, permission_id, created_at
		FROM role_grants
		WHERE role_id = $1
		ORDER BY item_id, permission_id`, roleID)
	if err != nil {
		return nil, mapStoreErr("list grants", err)
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.RoleID, &g.ItemID, &g.PermissionID, &g.CreatedAt); err != nil {
			return nil, mapStoreErr("scan grant", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr("list grants", err)
	}
	return grants, nil
}

// Exists reports whether the role holds the permission on the item.
func (s *Store) Exists(ctx context.Context, roleID, itemID, permissionID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM role_grants WHERE role_id = $1 AND item_id = $2 AND permission_id = $3)`,
		roleID, itemID, permissionID).Scan(&exists)
	if err != nil {
		return false, mapStoreErr("grant exists", err)
	}
	return exists, nil
}

// Toggle flips the grant state for one triple. The read and the flip run in a
// single transaction so two concurrent toggles serialize; the unique index on
// the triple is the backstop if they do not. A lost race surfaces as
// ErrToggleConflict, never as a silently doubled or dropped grant.
func (s *Store) Toggle(ctx context.Context, roleID, itemID, permissionID int64) (bool, error) {
	var granted bool
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM role_grants WHERE role_id = $1 AND item_id = $2 AND permission_id = $3)`,
			roleID, itemID, permissionID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			tag, err := tx.Exec(ctx, `
				DELETE FROM role_grants WHERE role_id = $1 AND item_id = $2 AND permission_id = $3`,
				roleID, itemID, permissionID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrToggleConflict
			}
			granted = false
			return nil
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO role_grants (id, role_id, item_id, permission_id, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (role_id, item_id, permission_id) DO NOTHING`,
			uuid.New(), roleID, itemID, permissionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrToggleConflict
		}
		granted = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrToggleConflict) {
			return false, ErrToggleConflict
		}
		if code := pgErrCode(err); code == "23505" || code == "40001" {
			return false, ErrToggleConflict
		}
		return false, mapStoreErr("toggle grant", err)
	}
	return granted, nil
}

// DeleteGrant removes one grant row by its own identifier.
func (s *Store) DeleteGrant(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM role_grants WHERE id = $1`, id)
	if err != nil {
		return mapStoreErr("delete grant", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

// DeleteOrphans removes grants referencing retired roles, items, or permissions.
func (s *Store) DeleteOrphans(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM role_grants g
		WHERE NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = g.role_id)
		   OR NOT EXISTS (SELECT 1 FROM items i WHERE i.id = g.item_id)
		   OR NOT EXISTS (SELECT 1 FROM permissions p WHERE p.id = g.permission_id)`)
	if err != nil {
		return 0, mapStoreErr("delete orphans", err)
	}
	return tag.RowsAffected(), nil
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func mapStoreErr(op string, err error) error {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("permissions: %s: %w", op, ErrStoreUnavailable)
	}
	return fmt.Errorf("permissions: %s: %w", op, err)
}
