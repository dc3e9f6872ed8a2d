package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-rbac/pkg/dto"
	"github.com/tendant/simple-rbac/pkg/httpx"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/user"
	"github.com/tendant/simple-rbac/pkg/validate"
)

type CreateRequest struct {
	Username      string   `json:"username" validate:"required,min=3,max=30,username"`
	Email         string   `json:"email" validate:"required,max=255,email"`
	Password      string   `json:"password" validate:"required,min=8,max=72"`
	Roles         []string `json:"roles" validate:"omitempty,dive,entityid"`
	EmailVerified bool     `json:"emailVerified"`
	IsActive      *bool    `json:"isActive"`
}

type UpdateRequest struct {
	Username      *string `json:"username" validate:"omitempty,min=3,max=30,username"`
	Email         *string `json:"email" validate:"omitempty,max=255,email"`
	Password      *string `json:"password" validate:"omitempty,min=8,max=72"`
	EmailVerified *bool   `json:"emailVerified"`
	IsActive      *bool   `json:"isActive"`
}

// RolesRequest is the body of the assign, add and remove endpoints. Assign
// accepts an empty list.
type RolesRequest struct {
	Roles []string `json:"roles" validate:"dive,entityid"`
}

type CheckRoleRequest struct {
	RoleID string `json:"roleId" validate:"required,entityid"`
}

type CheckRoleResponse struct {
	UserID  string `json:"userId"`
	RoleID  string `json:"roleId"`
	HasRole bool   `json:"hasRole"`
}

// Handle serves the user admin endpoints. Responses never include password
// hashes.
type Handle struct {
	userService *user.UserService
	validator   *validate.Validator
}

func NewHandle(userService *user.UserService, v *validate.Validator) *Handle {
	return &Handle{
		userService: userService,
		validator:   v,
	}
}

func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/username/{username}", h.GetByUsername)
	r.Get("/email/{email}", h.GetByEmail)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/restore", h.Restore)
		r.Delete("/permanent", h.DeletePermanent)
		r.Post("/verify-email", h.VerifyEmail)
		r.Post("/last-login", h.RecordLogin)

		r.Get("/roles", h.ListRoles)
		r.Post("/roles/assign", h.AssignRoles)
		r.Post("/roles/add", h.AddRoles)
		r.Post("/roles/remove", h.RemoveRoles)
		r.Post("/roles/check", h.CheckRole)
	})
	return r
}

// List handles GET / with page, pageSize, search, role, emailVerified and
// isActive. role is a role id or a role name.
func (h *Handle) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := httpx.PageParams(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	emailVerified, err := httpx.QueryBool(r, "emailVerified")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	isActive, err := httpx.QueryBool(r, "isActive")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	result, err := h.userService.List(r.Context(), query.UserCriteria{
		Search:        httpx.QueryString(r, "search"),
		Role:          httpx.QueryString(r, "role"),
		EmailVerified: emailVerified,
		IsActive:      isActive,
		Page:          page,
		PageSize:      pageSize,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Paged(w, r, dto.Page(result, dto.User))
}

func (h *Handle) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.userService.Stats(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, stats)
}

func (h *Handle) GetByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.userService.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.User(u))
}

func (h *Handle) GetByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.userService.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.User(u))
}

func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.userService.Get)
}

func (h *Handle) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	u, err := h.userService.Create(r.Context(), user.CreateInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		Roles:         model.IDs(req.Roles),
		EmailVerified: req.EmailVerified,
		IsActive:      req.IsActive,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Created(w, r, dto.User(u))
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

	u, err := h.userService.Update(r.Context(), id, user.UpdateInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		EmailVerified: req.EmailVerified,
		IsActive:      req.IsActive,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.User(u))
}

func (h *Handle) Delete(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.userService.SoftDelete)
}

func (h *Handle) Restore(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.userService.Restore)
}

func (h *Handle) DeletePermanent(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.userService.HardDelete)
}

func (h *Handle) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.userService.VerifyEmail)
}

func (h *Handle) RecordLogin(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.userService.RecordLogin)
}

func (h *Handle) ListRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	roles, err := h.userService.ListRoles(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.Roles(roles))
}

// AssignRoles replaces the user's role set.
func (h *Handle) AssignRoles(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.userService.AssignRoles)
}

func (h *Handle) AddRoles(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.userService.AddRoles)
}

func (h *Handle) RemoveRoles(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.userService.RemoveRoles)
}

func (h *Handle) CheckRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req CheckRoleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	has, err := h.userService.HasRole(r.Context(), id, model.ID(req.RoleID))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, CheckRoleResponse{
		UserID:  id.String(),
		RoleID:  req.RoleID,
		HasRole: has,
	})
}

func (h *Handle) membership(w http.ResponseWriter, r *http.Request, op func(context.Context, model.ID, []model.ID) (*model.User, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req RolesRequest
	if err := h.decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	u, err := op(r.Context(), id, model.IDs(req.Roles))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.User(u))
}

func (h *Handle) byID(w http.ResponseWriter, r *http.Request, op func(context.Context, model.ID) (*model.User, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	u, err := op(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w, r, dto.User(u))
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
