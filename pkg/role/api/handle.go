package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-rbac/pkg/dto"
	"github.com/tendant/simple-rbac/pkg/httpx"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	rolepkg "github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/validate"
)

type CreateRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=50"`
	Description string   `json:"description" validate:"required,min=5,max=500"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,entityid"`
	IsActive    *bool    `json:"isActive"`
}

type UpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=50"`
	Description *string `json:"description" validate:"omitempty,min=5,max=500"`
	IsActive    *bool   `json:"isActive"`
}

// PermissionsRequest is the body of the add, remove and set endpoints. Set
// accepts an empty list; add and remove do not.
type PermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"dive,entityid"`
}

type CheckPermissionRequest struct {
	PermissionID string `json:"permissionId" validate:"required,entityid"`
}

type CheckPermissionResponse struct {
	RoleID        string `json:"roleId"`
	PermissionID  string `json:"permissionId"`
	HasPermission bool   `json:"hasPermission"`
}

type Handle struct {
	roleService *rolepkg.RoleService
	validator   *validate.Validator
}

func NewHandle(roleService *rolepkg.RoleService, v *validate.Validator) *Handle {
	return &Handle{
		roleService: roleService,
		validator:   v,
	}
}

func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/name/{name}", h.GetByName)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/restore", h.Restore)
		r.Delete("/permanent", h.DeletePermanent)

		r.Get("/permissions", h.ListPermissions)
		r.Post("/permissions/add", h.AddPermissions)
		r.Post("/permissions/remove", h.RemovePermissions)
		r.Post("/permissions/set", h.SetPermissions)
		r.Post("/permissions/check", h.CheckPermission)
	})
	return r
}

// List handles GET / with page, pageSize and includeInactive. Roles come
// with their permissions resolved.
func (h *Handle) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := httpx.PageParams(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	includeInactive, err := httpx.QueryBool(r, "includeInactive")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	result, err := h.roleService.List(r.Context(), query.RoleCriteria{
		IncludeInactive: includeInactive != nil && *includeInactive,
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Paged(w, r, dto.Page(result, dto.Role))
}

func (h *Handle) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.roleService.Stats(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, stats)
}

func (h *Handle) GetByName(w http.ResponseWriter, r *http.Request) {
	role, err := h.roleService.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Role(role))
}

func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.roleService.Get)
}

func (h *Handle) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	role, err := h.roleService.Create(r.Context(), rolepkg.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: model.IDs(req.Permissions),
		IsActive:    req.IsActive,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Created(w, r, dto.Role(role))
}

func (h *Handle) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	role, err := h.roleService.Update(r.Context(), id, rolepkg.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Role(role))
}

// Delete deactivates the role. Users keep their references.
func (h *Handle) Delete(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.roleService.SoftDelete)
}

func (h *Handle) Restore(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.roleService.Restore)
}

func (h *Handle) DeletePermanent(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.roleService.HardDelete)
}

func (h *Handle) ListPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	perms, err := h.roleService.ListPermissions(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Permissions(perms))
}

func (h *Handle) AddPermissions(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.roleService.AddPermissions)
}

func (h *Handle) RemovePermissions(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.roleService.RemovePermissions)
}

// SetPermissions replaces the whole permission set; an empty list clears it.
func (h *Handle) SetPermissions(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.roleService.SetPermissions)
}

func (h *Handle) CheckPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req CheckPermissionRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	has, err := h.roleService.HasPermission(r.Context(), id, model.ID(req.PermissionID))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, CheckPermissionResponse{
		RoleID:        id.String(),
		PermissionID:  req.PermissionID,
		HasPermission: has,
	})
}

func (h *Handle) membership(w http.ResponseWriter, r *http.Request, op func(context.Context, model.ID, []model.ID) (*model.Role, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req PermissionsRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	role, err := op(r.Context(), id, model.IDs(req.Permissions))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Role(role))
}

func (h *Handle) byID(w http.ResponseWriter, r *http.Request, op func(context.Context, model.ID) (*model.Role, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	role, err := op(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Role(role))
}

func (h *Handle) pathID(w http.ResponseWriter, r *http.Request) (model.ID, bool) {
	raw := chi.URLParam(r, "id")
	if err := h.validator.ID("id", raw); err != nil {
		httpx.Error(w, r, err)
		return "", false
	}
	return model.ID(raw), true
}

func (h *Handle) decode(r *http.Request, v any) error {
	if err := httpx.Decode(r, v); err != nil {
		return err
	}
	return h.validator.Struct(v)
}
