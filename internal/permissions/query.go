package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/vantage-admin/vantage-admin/internal/catalog"
	"github.com/vantage-admin/vantage-admin/internal/roles"
)

// RoleDirectory resolves role references. Implemented by the roles repository.
type RoleDirectory interface {
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// QueryService reconstructs role views from the catalog and the grant store.
// Pure reads, no side effects.
type QueryService struct {
	directory RoleDirectory
	catalog   catalog.Repository
	store     GrantStore
	cache     *Cache
	group     singleflight.Group
}

// NewQueryService constructs a QueryService.
func NewQueryService(directory RoleDirectory, cat catalog.Repository, store GrantStore, cache *Cache) *QueryService {
	return &QueryService{directory: directory, catalog: cat, store: store, cache: cache}
}

// GetRolePermissions returns the module→item→permission tree for the role.
// Every module the role's company is entitled to appears in the result, items
// and all, with possibly empty permission lists; moduleID scopes the view to a
// single module. An unknown role is ErrRoleNotFound, never an empty view.
//
// Ordering is fixed: modules and items by catalog display order then id,
// permissions by id. Repeated calls against an unchanged store produce
// byte-identical output.
func (s *QueryService) GetRolePermissions(ctx context.Context, roleID int64, moduleID *int64) ([]ModuleGrants, error) {
	role, err := s.directory.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("permissions: resolve role: %w", err)
	}

	keyParts := []string{"permissions", "view", strconv.FormatInt(roleID, 10)}
	if moduleID != nil {
		keyParts = append(keyParts, strconv.FormatInt(*moduleID, 10))
	}
	key, err := s.cache.BuildKey(ctx, keyParts...)
	if err != nil {
		return nil, fmt.Errorf("permissions: cache key: %w", err)
	}

	var view []ModuleGrants
	err = s.cache.FetchJSON(ctx, key, &view, func(ctx context.Context) (interface{}, error) {
		result, err, _ := s.group.Do(key, func() (interface{}, error) {
			return s.buildView(ctx, role, moduleID)
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RelatedData returns the catalog projection for the role's context: entitled
// modules plus the permission kinds. No grant data.
func (s *QueryService) RelatedData(ctx context.Context, roleID int64) (RelatedData, error) {
	role, err := s.directory.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			return RelatedData{}, ErrRoleNotFound
		}
		return RelatedData{}, fmt.Errorf("permissions: resolve role: %w", err)
	}
	modules, err := s.catalog.ListModulesForCompany(ctx, role.CompanyID)
	if err != nil {
		return RelatedData{}, fmt.Errorf("permissions: list modules: %w", err)
	}
	perms, err := s.catalog.ListPermissions(ctx)
	if err != nil {
		return RelatedData{}, fmt.Errorf("permissions: list permissions: %w", err)
	}
	if modules == nil {
		modules = []catalog.Module{}
	}
	if perms == nil {
		perms = []catalog.Permission{}
	}
	return RelatedData{Modules: modules, Permissions: perms}, nil
}

// HasPermission answers the consumer question "does the role hold this
// permission on this item". Unknown roles are reported as ErrRoleNotFound so
// callers never mistake a missing role for a denied one.
func (s *QueryService) HasPermission(ctx context.Context, roleID, itemID, permissionID int64) (bool, error) {
	if _, err := s.directory.GetRole(ctx, roleID); err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			return false, ErrRoleNotFound
		}
		return false, fmt.Errorf("permissions: resolve role: %w", err)
	}
	return s.store.Exists(ctx, roleID, itemID, permissionID)
}

func (s *QueryService) buildView(ctx context.Context, role roles.Role, moduleID *int64) ([]ModuleGrants, error) {
	var (
		modules []catalog.Module
		err     error
	)
	if moduleID != nil {
		module, err := s.catalog.GetModule(ctx, *moduleID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, ErrModuleNotFound
			}
			return nil, fmt.Errorf("permissions: get module: %w", err)
		}
		modules = []catalog.Module{module}
	} else {
		modules, err = s.catalog.ListModulesForCompany(ctx, role.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("permissions: list modules: %w", err)
		}
	}

	perms, err := s.catalog.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("permissions: list permissions: %w", err)
	}
	permNames := make(map[int64]string, len(perms))
	for _, p := range perms {
		permNames[p.ID] = p.Name
	}

	grants, err := s.store.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	held := make(map[int64][]int64)
	for _, g := range grants {
		held[g.ItemID] = append(held[g.ItemID], g.PermissionID)
	}

	view := make([]ModuleGrants, 0, len(modules))
	for _, m := range modules {
		items, err := s.catalog.ListItemsByModule(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("permissions: list items: %w", err)
		}
		mg := ModuleGrants{ModuleID: m.ID, ModuleName: m.Name, Items: make([]ItemGrants, 0, len(items))}
		for _, it := range items {
			ig := ItemGrants{ItemID: it.ID, ItemName: it.Name, Permissions: []PermissionRef{}}
			permIDs := append([]int64(nil), held[it.ID]...)
			sort.Slice(permIDs, func(i, j int) bool { return permIDs[i] < permIDs[j] })
			for _, id := range permIDs {
				name, ok := permNames[id]
				if !ok {
					// Orphaned grant rows are swept by the background job;
					// never surface them in the view.
					continue
				}
				ig.Permissions = append(ig.Permissions, PermissionRef{PermissionID: id, PermissionName: name})
			}
			mg.Items = append(mg.Items, ig)
		}
		view = append(view, mg)
	}
	return view, nil
}
