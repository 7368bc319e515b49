package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested catalog row does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Repository defines read access to the catalog. Lookups are by primary key;
// listings carry the catalog display order so callers can rely on stable
// output.
type Repository interface {
	ListModules(ctx context.Context) ([]Module, error)
	ListModulesForCompany(ctx context.Context, companyID int64) ([]Module, error)
	GetModule(ctx context.Context, id int64) (Module, error)
	ListItemsByModule(ctx context.Context, moduleID int64) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	GetItemByName(ctx context.Context, name string) (Item, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GetPermissionByName(ctx context.Context, name string) (Permission, error)
}

// repo provides PostgreSQL backed catalog access.
type repo struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repo{pool: pool}
}

func (r *repo) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, icon, display_order FROM modules ORDER BY display_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModules(rows)
}

func (r *repo) ListModulesForCompany(ctx context.Context, companyID int64) ([]Module, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.name, m.icon, m.display_order
		FROM modules m
		JOIN company_modules cm ON cm.module_id = m.id
		WHERE cm.company_id = $1
		ORDER BY m.display_order, m.id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModules(rows)
}

func (r *repo) GetModule(ctx context.Context, id int64) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx, `SELECT id, name, icon, display_order FROM modules WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Icon, &m.DisplayOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Module{}, ErrNotFound
	}
	return m, err
}

func (r *repo) ListItemsByModule(ctx context.Context, moduleID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, module_id, name, display_order
		FROM items
		WHERE module_id = $1
		ORDER BY display_order, id`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ModuleID, &it.Name, &it.DisplayOrder); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repo) GetItem(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `SELECT id, module_id, name, display_order FROM items WHERE id = $1`, id).
		Scan(&it.ID, &it.ModuleID, &it.Name, &it.DisplayOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *repo) GetItemByName(ctx context.Context, name string) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `SELECT id, module_id, name, display_order FROM items WHERE name = $1`, name).
		Scan(&it.ID, &it.ModuleID, &it.Name, &it.DisplayOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *repo) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM permissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *repo) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM permissions WHERE id = $1`, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	return p, err
}

func (r *repo) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM permissions WHERE name = $1`, name).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	return p, err
}

func scanModules(rows pgx.Rows) ([]Module, error) {
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Name, &m.Icon, &m.DisplayOrder); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}
