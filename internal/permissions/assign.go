package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vantage-admin/vantage-admin/internal/catalog"
	"github.com/vantage-admin/vantage-admin/internal/roles"
	"github.com/vantage-admin/vantage-admin/internal/shared"
)

// AuditRecorder persists mutation audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ToggleMetrics counts completed toggles.
type ToggleMetrics interface {
	RecordToggle(granted bool)
}

// AssignmentService applies validated grant mutations. All three references
// are resolved against the role store and the catalog before the grant store
// is touched; a failed validation leaves the store untouched.
type AssignmentService struct {
	logger    *slog.Logger
	directory RoleDirectory
	catalog   catalog.Repository
	store     GrantStore
	cache     *Cache
	audit     AuditRecorder
	metrics   ToggleMetrics
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(logger *slog.Logger, directory RoleDirectory, cat catalog.Repository, store GrantStore, cache *Cache, audit AuditRecorder, metrics ToggleMetrics) *AssignmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentService{
		logger:    logger,
		directory: directory,
		catalog:   cat,
		store:     store,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
	}
}

// Toggle flips the grant for the triple and returns the new state: true when
// the call granted, false when it revoked. Re-granting and re-revoking are
// no-ops at the store level, so retrying after a timeout is safe. The cache
// version is bumped before returning so the new state is visible to the very
// next query.
func (s *AssignmentService) Toggle(ctx context.Context, roleID, itemID, permissionID int64) (bool, error) {
	if err := s.validateRefs(ctx, roleID, itemID, permissionID); err != nil {
		return false, err
	}

	granted, err := s.store.Toggle(ctx, roleID, itemID, permissionID)
	if err != nil {
		return false, err
	}

	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump permissions cache", slog.Any("error", err))
	}
	if s.metrics != nil {
		s.metrics.RecordToggle(granted)
	}
	s.recordAudit(ctx, granted, roleID, itemID, permissionID)
	return granted, nil
}

// DeleteGrant removes one grant row by its identifier, distinct from the
// toggle path.
func (s *AssignmentService) DeleteGrant(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteGrant(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump permissions cache", slog.Any("error", err))
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "PERMISSION_GRANT_DELETE",
			Entity:   "role_grants",
			EntityID: id.String(),
		}); err != nil {
			s.logger.Warn("audit grant delete", slog.Any("error", err))
		}
	}
	return nil
}

func (s *AssignmentService) validateRefs(ctx context.Context, roleID, itemID, permissionID int64) error {
	if _, err := s.directory.GetRole(ctx, roleID); err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("permissions: resolve role: %w", err)
	}
	if _, err := s.catalog.GetItem(ctx, itemID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("permissions: resolve item: %w", err)
	}
	if _, err := s.catalog.GetPermission(ctx, permissionID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ErrPermissionNotFound
		}
		return fmt.Errorf("permissions: resolve permission: %w", err)
	}
	return nil
}

func (s *AssignmentService) recordAudit(ctx context.Context, granted bool, roleID, itemID, permissionID int64) {
	if s.audit == nil {
		return
	}
	action := "PERMISSION_REVOKE"
	if granted {
		action = "PERMISSION_GRANT"
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "role_grants",
		EntityID: fmt.Sprintf("%d:%d:%d", roleID, itemID, permissionID),
		Meta: map[string]any{
			"role_id":       roleID,
			"item_id":       itemID,
			"permission_id": permissionID,
		},
	})
	if err != nil {
		s.logger.Warn("audit permission toggle", slog.Any("error", err))
	}
}
