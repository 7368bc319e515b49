// Package permissions implements the role permission matrix: the grant store,
// the query service reconstructing a role's module/item/permission tree, and
// the assignment service applying validated toggle mutations.
package permissions

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vantage-admin/vantage-admin/internal/catalog"
)

// Sentinel errors. The NotFound variants name the reference that failed to
// resolve so callers can distinguish a bad role from a bad item or permission.
var (
	ErrRoleNotFound       = errors.New("permissions: role not found")
	ErrModuleNotFound     = errors.New("permissions: module not found")
	ErrItemNotFound       = errors.New("permissions: item not found")
	ErrPermissionNotFound = errors.New("permissions: permission not found")
	ErrGrantNotFound      = errors.New("permissions: grant not found")
	ErrToggleConflict     = errors.New("permissions: concurrent toggle lost the race")
	ErrStoreUnavailable   = errors.New("permissions: grant store unavailable")
)

// Grant records that a role holds a permission on an item. The
// (RoleID, ItemID, PermissionID) triple is unique in the store; ID identifies
// the row itself for row-level deletes.
type Grant struct {
	ID           uuid.UUID
	RoleID       int64
	ItemID       int64
	PermissionID int64
	CreatedAt    time.Time
}

// PermissionRef is a permission entry inside a role module view.
type PermissionRef struct {
	PermissionID   int64  `json:"permissionId"`
	PermissionName string `json:"permissionName"`
}

// ItemGrants lists the permissions a role holds on one item. Permissions is
// empty, never nil, when the role holds nothing on the item.
type ItemGrants struct {
	ItemID      int64           `json:"itemId"`
	ItemName    string          `json:"itemName"`
	Permissions []PermissionRef `json:"permissions"`
}

// ModuleGrants is one module of the derived role view. It is recomputed on
// every read and never persisted.
type ModuleGrants struct {
	ModuleID   int64        `json:"moduleId"`
	ModuleName string       `json:"moduleName"`
	Items      []ItemGrants `json:"items"`
}

// RelatedData is the catalog projection for a role's context: the modules the
// role's company is entitled to and the full set of permission kinds. It
// carries no grant data.
type RelatedData struct {
	Modules     []catalog.Module
	Permissions []catalog.Permission
}
