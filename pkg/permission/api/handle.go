package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-rbac/pkg/dto"
	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/httpx"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/validate"
)

type CreateRequest struct {
	Action      string `json:"action" validate:"required,min=2,max=50,slug"`
	Resource    string `json:"resource" validate:"required,min=2,max=50,slug"`
	Description string `json:"description" validate:"required,min=5,max=300"`
	IsActive    *bool  `json:"isActive"`
}

type BulkCreateRequest struct {
	Permissions []CreateRequest `json:"permissions" validate:"required,min=1,max=100,dive"`
}

type UpdateRequest struct {
	Action      *string `json:"action" validate:"omitempty,min=2,max=50,slug"`
	Resource    *string `json:"resource" validate:"omitempty,min=2,max=50,slug"`
	Description *string `json:"description" validate:"omitempty,min=5,max=300"`
	IsActive    *bool   `json:"isActive"`
}

type CheckResponse struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Exists   bool   `json:"exists"`
}

type Handle struct {
	permissionService *permission.PermissionService
	validator         *validate.Validator
}

func NewHandle(permissionService *permission.PermissionService, v *validate.Validator) *Handle {
	return &Handle{
		permissionService: permissionService,
		validator:         v,
	}
}

// Handler returns the permission routes. Static segments win over {id} in
// chi, so /stats and friends never reach the id lookup.
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/bulk", h.BulkCreate)
	r.Get("/stats", h.Stats)
	r.Get("/actions", h.Actions)
	r.Get("/resources", h.Resources)
	r.Get("/map", h.ActionMap)
	r.Get("/check", h.Check)
	r.Get("/action/{action}", h.ByAction)
	r.Get("/resource/{resource}", h.ByResource)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/restore", h.Restore)
		r.Delete("/permanent", h.DeletePermanent)
		// {id} holds the action on this route.
		r.Get("/{resource}", h.ByActionResource)
	})
	return r
}

// List handles GET / with page, pageSize, includeInactive, action and resource.
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

	result, err := h.permissionService.List(r.Context(), query.PermissionCriteria{
		IncludeInactive: includeInactive != nil && *includeInactive,
		Action:          httpx.QueryString(r, "action"),
		Resource:        httpx.QueryString(r, "resource"),
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Paged(w, r, dto.Page(result, dto.Permission))
}

func (h *Handle) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.permissionService.Stats(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, stats)
}

func (h *Handle) Actions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.permissionService.UniqueActions(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, actions)
}

func (h *Handle) Resources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.permissionService.UniqueResources(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, resources)
}

// ActionMap handles GET /map: {"read": ["posts", "users"], ...}.
func (h *Handle) ActionMap(w http.ResponseWriter, r *http.Request) {
	m, err := h.permissionService.ActionMap(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, m)
}

// Check handles GET /check?action=&resource=.
func (h *Handle) Check(w http.ResponseWriter, r *http.Request) {
	action := httpx.QueryString(r, "action")
	resource := httpx.QueryString(r, "resource")
	if action == "" || resource == "" {
		httpx.Error(w, r, apperrors.InvalidInput("query", "action and resource are required"))
		return
	}

	exists, err := h.permissionService.Exists(r.Context(), action, resource)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, CheckResponse{
		Action:   model.NormalizeKey(action),
		Resource: model.NormalizeKey(resource),
		Exists:   exists,
	})
}

func (h *Handle) ByAction(w http.ResponseWriter, r *http.Request) {
	perms, err := h.permissionService.FindByAction(r.Context(), chi.URLParam(r, "action"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Permissions(perms))
}

func (h *Handle) ByResource(w http.ResponseWriter, r *http.Request) {
	perms, err := h.permissionService.FindByResource(r.Context(), chi.URLParam(r, "resource"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Permissions(perms))
}

func (h *Handle) ByActionResource(w http.ResponseWriter, r *http.Request) {
	p, err := h.permissionService.GetByActionResource(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "resource"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Permission(p))
}

func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.permissionService.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Permission(p))
}

func (h *Handle) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	p, err := h.permissionService.Create(r.Context(), req.input())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Created(w, r, dto.Permission(p))
}

// BulkCreate handles POST /bulk. Creation stops at the first failure; the
// permissions created before it are kept.
func (h *Handle) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	inputs := make([]permission.CreateInput, len(req.Permissions))
	for i, p := range req.Permissions {
		inputs[i] = p.input()
	}
	created, err := h.permissionService.BulkCreate(r.Context(), inputs)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Created(w, r, dto.Permissions(created))
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

	p, err := h.permissionService.Update(r.Context(), id, permission.UpdateInput{
		Action:      req.Action,
		Resource:    req.Resource,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Permission(p))
}

// Delete deactivates the permission. Roles keep their references.
func (h *Handle) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.permissionService.SoftDelete)
}

func (h *Handle) Restore(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.permissionService.Restore)
}

func (h *Handle) DeletePermanent(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.permissionService.HardDelete)
}

func (h *Handle) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id model.ID) (*model.Permission, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := op(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Permission(p))
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

func (req CreateRequest) input() permission.CreateInput {
	return permission.CreateInput{
		Action:      req.Action,
		Resource:    req.Resource,
		Description: req.Description,
		IsActive:    req.IsActive,
	}
}
