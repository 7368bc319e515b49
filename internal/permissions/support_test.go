package permissions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vantage-admin/vantage-admin/internal/catalog"
	"github.com/vantage-admin/vantage-admin/internal/roles"
	"github.com/vantage-admin/vantage-admin/internal/shared"
	_ "github.com/vantage-admin/vantage-admin/internal/testing/guard"
)

// stubDirectory resolves roles from a fixed map.
type stubDirectory struct {
	roles map[int64]roles.Role
}

func (s *stubDirectory) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return roles.Role{}, roles.ErrNotFound
	}
	return role, nil
}

// stubCatalog serves a fixed catalog.
type stubCatalog struct {
	modules       []catalog.Module
	itemsByModule map[int64][]catalog.Item
	permissions   []catalog.Permission
	entitlements  map[int64][]int64 // companyID -> moduleIDs
}

func (s *stubCatalog) ListModules(ctx context.Context) ([]catalog.Module, error) {
	return s.modules, nil
}

func (s *stubCatalog) ListModulesForCompany(ctx context.Context, companyID int64) ([]catalog.Module, error) {
	allowed, ok := s.entitlements[companyID]
	if !ok {
		return nil, nil
	}
	var out []catalog.Module
	for _, m := range s.modules {
		for _, id := range allowed {
			if m.ID == id {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (s *stubCatalog) GetModule(ctx context.Context, id int64) (catalog.Module, error) {
	for _, m := range s.modules {
		if m.ID == id {
			return m, nil
		}
	}
	return catalog.Module{}, catalog.ErrNotFound
}

func (s *stubCatalog) ListItemsByModule(ctx context.Context, moduleID int64) ([]catalog.Item, error) {
	return s.itemsByModule[moduleID], nil
}

func (s *stubCatalog) GetItem(ctx context.Context, id int64) (catalog.Item, error) {
	for _, items := range s.itemsByModule {
		for _, it := range items {
			if it.ID == id {
				return it, nil
			}
		}
	}
	return catalog.Item{}, catalog.ErrNotFound
}

func (s *stubCatalog) GetItemByName(ctx context.Context, name string) (catalog.Item, error) {
	for _, items := range s.itemsByModule {
		for _, it := range items {
			if it.Name == name {
				return it, nil
			}
		}
	}
	return catalog.Item{}, catalog.ErrNotFound
}

func (s *stubCatalog) ListPermissions(ctx context.Context) ([]catalog.Permission, error) {
	return s.permissions, nil
}

func (s *stubCatalog) GetPermission(ctx context.Context, id int64) (catalog.Permission, error) {
	for _, p := range s.permissions {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Permission{}, catalog.ErrNotFound
}

func (s *stubCatalog) GetPermissionByName(ctx context.Context, name string) (catalog.Permission, error) {
	for _, p := range s.permissions {
		if p.Name == name {
			return p, nil
		}
	}
	return catalog.Permission{}, catalog.ErrNotFound
}

// memStore is an in-memory GrantStore with toggle semantics mirroring the
// PostgreSQL implementation.
type memStore struct {
	mu        sync.Mutex
	grants    map[string]Grant
	toggleErr error
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{grants: make(map[string]Grant)}
}

func tripleKey(roleID, itemID, permissionID int64) string {
	return fmt.Sprintf("%d:%d:%d", roleID, itemID, permissionID)
}

func (m *memStore) ListByRole(ctx context.Context, roleID int64) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []Grant
	for _, g := range m.grants {
		if g.RoleID == roleID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) Exists(ctx context.Context, roleID, itemID, permissionID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grants[tripleKey(roleID, itemID, permissionID)]
	return ok, nil
}

func (m *memStore) Toggle(ctx context.Context, roleID, itemID, permissionID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.toggleErr != nil {
		return false, m.toggleErr
	}
	key := tripleKey(roleID, itemID, permissionID)
	if _, ok := m.grants[key]; ok {
		delete(m.grants, key)
		return false, nil
	}
	m.grants[key] = Grant{
		ID:           uuid.New(),
		RoleID:       roleID,
		ItemID:       itemID,
		PermissionID: permissionID,
		CreatedAt:    time.Now(),
	}
	return true, nil
}

func (m *memStore) DeleteGrant(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, g := range m.grants {
		if g.ID == id {
			delete(m.grants, key)
			return nil
		}
	}
	return ErrGrantNotFound
}

func (m *memStore) DeleteOrphans(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grants)
}

func (m *memStore) grantID(roleID, itemID, permissionID int64) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[tripleKey(roleID, itemID, permissionID)]
	return g.ID, ok
}

// auditSink collects audit records in memory.
type auditSink struct {
	mu      sync.Mutex
	records []shared.AuditLog
}

func (a *auditSink) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, log)
	return nil
}

func (a *auditSink) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Action)
	}
	return out
}

// fixtureCatalog builds the scenario catalog: module M1 with item I1 and
// permissions view/edit.
func fixtureCatalog() *stubCatalog {
	return &stubCatalog{
		modules: []catalog.Module{
			{ID: 1, Name: "Learning", DisplayOrder: 1},
			{ID: 2, Name: "Assets", DisplayOrder: 2},
		},
		itemsByModule: map[int64][]catalog.Item{
			1: {
				{ID: 10, ModuleID: 1, Name: "courses", DisplayOrder: 1},
				{ID: 11, ModuleID: 1, Name: "certifications", DisplayOrder: 2},
			},
			2: {
				{ID: 20, ModuleID: 2, Name: "asset-register", DisplayOrder: 1},
			},
		},
		permissions: []catalog.Permission{
			{ID: 100, Name: "view"},
			{ID: 101, Name: "edit"},
		},
		entitlements: map[int64][]int64{7: {1, 2}},
	}
}

func fixtureDirectory() *stubDirectory {
	return &stubDirectory{roles: map[int64]roles.Role{
		1: {ID: 1, CompanyID: 7, Name: "Administrator"},
		2: {ID: 2, CompanyID: 7, Name: "Auditor"},
	}}
}
