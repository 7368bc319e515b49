package permissions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vantage-admin/vantage-admin/internal/catalog"
)

// PermissionChecker answers grant membership questions. Implemented by
// QueryService.
type PermissionChecker interface {
	HasPermission(ctx context.Context, roleID, itemID, permissionID int64) (bool, error)
}

// Guard wires permission checks in front of HTTP handlers. The acting role is
// an explicit request attribute resolved by RoleFromRequest, never ambient
// state.
type Guard struct {
	Checker         PermissionChecker
	Catalog         catalog.Repository
	Logger          *slog.Logger
	RoleFromRequest func(*http.Request) (int64, bool)
}

// RoleFromHeader resolves the acting role from the X-Role-ID header, the
// contract with the identity layer fronting this service.
func RoleFromHeader(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-Role-ID"))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Require ensures the acting role holds the named permission on the named
// catalog item.
func (g Guard) Require(item, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roleID, ok := g.roleID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			it, err := g.Catalog.GetItemByName(r.Context(), item)
			if err != nil {
				g.fail(w, "guard resolve item", err)
				return
			}
			perm, err := g.Catalog.GetPermissionByName(r.Context(), permission)
			if err != nil {
				g.fail(w, "guard resolve permission", err)
				return
			}
			held, err := g.Checker.HasPermission(r.Context(), roleID, it.ID, perm.ID)
			if err != nil {
				if errors.Is(err, ErrRoleNotFound) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				g.fail(w, "guard check permission", err)
				return
			}
			if !held {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g Guard) roleID(r *http.Request) (int64, bool) {
	resolve := g.RoleFromRequest
	if resolve == nil {
		resolve = RoleFromHeader
	}
	return resolve(r)
}

func (g Guard) fail(w http.ResponseWriter, msg string, err error) {
	if g.Logger != nil {
		g.Logger.Error(msg, slog.Any("error", err))
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
