package permissions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
)

// Handler exposes the permission matrix over HTTP.
type Handler struct {
	logger    *slog.Logger
	query     *QueryService
	assign    *AssignmentService
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, query *QueryService, assign *AssignmentService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, query: query, assign: assign, validator: validator.New()}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.getRolePermissions)
	r.Post("/", h.toggle)
	r.Get("/related-data", h.relatedData)
	r.Delete("/{grantID}", h.deleteGrant)
}

type toggleRequest struct {
	RoleID       int64 `json:"roleId" validate:"required,gt=0"`
	ItemID       int64 `json:"itemId" validate:"required,gt=0"`
	PermissionID int64 `json:"permissionId" validate:"required,gt=0"`
}

type toggleResponse struct {
	Granted bool `json:"granted"`
}

type moduleResponse struct {
	ModuleID   int64  `json:"moduleId"`
	ModuleName string `json:"moduleName"`
	Icon       string `json:"icon,omitempty"`
}

type permissionResponse struct {
	PermissionID   int64  `json:"permissionId"`
	PermissionName string `json:"permissionName"`
}

type relatedDataResponse struct {
	Modules     []moduleResponse     `json:"modules"`
	Permissions []permissionResponse `json:"permissions"`
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(r.URL.Query().Get("roleId"), 10, 64)
	if err != nil || roleID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "roleId must be a positive integer")
		return
	}
	var moduleID *int64
	if raw := r.URL.Query().Get("moduleId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "moduleId must be a positive integer")
			return
		}
		moduleID = &id
	}

	view, err := h.query.GetRolePermissions(r.Context(), roleID, moduleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	granted, err := h.assign.Toggle(r.Context(), req.RoleID, req.ItemID, req.PermissionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toggleResponse{Granted: granted})
}

func (h *Handler) relatedData(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(r.URL.Query().Get("roleId"), 10, 64)
	if err != nil || roleID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "roleId must be a positive integer")
		return
	}
	data, err := h.query.RelatedData(r.Context(), roleID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRelatedResponse(data))
}

func (h *Handler) deleteGrant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "grantID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "grantID must be a UUID")
		return
	}
	if err := h.assign.DeleteGrant(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role does not exist")
	case errors.Is(err, ErrModuleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "module does not exist")
	case errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "item does not exist")
	case errors.Is(err, ErrPermissionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "permission does not exist")
	case errors.Is(err, ErrGrantNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "grant does not exist")
	case errors.Is(err, ErrToggleConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "concurrent mutation, re-read current state and retry")
	case errors.Is(err, ErrStoreUnavailable):
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "")
	default:
		h.logger.Error("permissions handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toRelatedResponse(data RelatedData) relatedDataResponse {
	out := relatedDataResponse{
		Modules:     make([]moduleResponse, 0, len(data.Modules)),
		Permissions: make([]permissionResponse, 0, len(data.Permissions)),
	}
	for _, m := range data.Modules {
		out.Modules = append(out.Modules, moduleResponse{ModuleID: m.ID, ModuleName: m.Name, Icon: m.Icon})
	}
	for _, p := range data.Permissions {
		out.Permissions = append(out.Permissions, permissionResponse{PermissionID: p.ID, PermissionName: p.Name})
	}
	return out
}
