package user

import (
	"context"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/hasher"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/relation"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/store"
)

// Repository is the user repository.
type Repository = repository.Repository[*model.User, model.UserRelation]

// CreateInput holds the fields of a new user. Password is plaintext and is
// hashed before it is stored. IsActive defaults to true.
type CreateInput struct {
	Username      string
	Email         string
	Password      string
	Roles         []model.ID
	EmailVerified bool
	IsActive      *bool
}

// UpdateInput holds the fields to change. Nil fields are left as they are.
type UpdateInput struct {
	Username      *string
	Email         *string
	Password      *string
	EmailVerified *bool
	IsActive      *bool
}

// Stats summarises the user collection.
type Stats struct {
	Total              int64   `json:"total"`
	Active             int64   `json:"active"`
	Inactive           int64   `json:"inactive"`
	Verified           int64   `json:"verified"`
	Unverified         int64   `json:"unverified"`
	ActivePercentage   float64 `json:"activePercentage"`
	VerifiedPercentage float64 `json:"verifiedPercentage"`
}

// UserService manages users and their role sets. Usernames and emails are
// unique; emails are stored lowercased.
type UserService struct {
	repo   *Repository
	roles  *relation.UserRoles
	lookup query.RoleResolver
	hasher hasher.PasswordHasher
	now    func() time.Time
}

// UserServiceOption configures a UserService.
type UserServiceOption func(*UserService)

// WithClock overrides the clock used for lastLogin.
func WithClock(now func() time.Time) UserServiceOption {
	return func(s *UserService) { s.now = now }
}

func NewUserService(repo *Repository, roles *relation.UserRoles, lookup query.RoleResolver, h hasher.PasswordHasher, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:   repo,
		roles:  roles,
		lookup: lookup,
		hasher: h,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns a page of users with roles and permissions resolved. A role
// criterion naming no role yields an empty page without querying users.
func (s *UserService) List(ctx context.Context, c query.UserCriteria) (model.Page[*model.User], error) {
	q, ok, err := query.ComposeUsers(ctx, c, s.lookup, s.repo.ValidID)
	if err != nil {
		return model.Page[*model.User]{}, err
	}
	if !ok {
		return model.EmptyPage[*model.User](q.Page, q.PageSize), nil
	}
	return s.repo.FindPage(ctx, q, model.UserRolesPermissions)
}

// Get returns the user with roles and permissions resolved, active or not.
func (s *UserService) Get(ctx context.Context, id model.ID) (*model.User, error) {
	return s.getOne(ctx, query.Eq{Field: model.FieldID, Value: id}, id.String())
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	return s.getOne(ctx, query.Eq{Field: model.FieldUsername, Value: username}, username)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	return s.getOne(ctx, query.Eq{Field: model.FieldEmail, Value: email}, email)
}

func (s *UserService) getOne(ctx context.Context, filter query.Filter, key string) (*model.User, error) {
	u, found, err := s.repo.FindOne(ctx, filter, model.UserRolesPermissions)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("user", key)
	}
	return u, nil
}

// Create hashes the password and stores a new user. A username or email
// already in use, by an active user or not, is a conflict.
func (s *UserService) Create(ctx context.Context, in CreateInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := model.NormalizeEmail(in.Email)
	if username == "" || email == "" {
		return nil, apperrors.InvalidInput("user", "username and email are required")
	}
	if err := s.checkUnique(ctx, "", &username, &email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.InvalidInput("password", err.Error())
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	created, err := s.repo.Create(ctx, &model.User{
		Username:      username,
		Email:         email,
		Password:      hash,
		EmailVerified: in.EmailVerified,
		IsActive:      isActive,
		Roles:         model.UniqueIDs(in.Roles),
	})
	if err != nil {
		return nil, err
	}
	slog.Info("User created", "user_id", created.ID, "username", username, "roles", len(created.Roles))
	return s.Get(ctx, created.ID)
}

func (s *UserService) Update(ctx context.Context, id model.ID, in UpdateInput) (*model.User, error) {
	set := map[string]any{}
	var username, email *string
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		username = &v
		set[model.FieldUsername] = v
	}
	if in.Email != nil {
		v := model.NormalizeEmail(*in.Email)
		email = &v
		set[model.FieldEmail] = v
	}
	if err := s.checkUnique(ctx, id, username, email); err != nil {
		return nil, err
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, apperrors.InvalidInput("password", err.Error())
		}
		set[model.FieldPassword] = hash
	}
	if in.EmailVerified != nil {
		set[model.FieldEmailVerified] = *in.EmailVerified
	}
	if in.IsActive != nil {
		set[model.FieldIsActive] = *in.IsActive
	}
	return s.update(ctx, id, set, "updated")
}

// VerifyEmail marks the user's email as verified.
func (s *UserService) VerifyEmail(ctx context.Context, id model.ID) (*model.User, error) {
	return s.update(ctx, id, map[string]any{model.FieldEmailVerified: true}, "email verified")
}

// RecordLogin sets lastLogin to now.
func (s *UserService) RecordLogin(ctx context.Context, id model.ID) (*model.User, error) {
	return s.update(ctx, id, map[string]any{model.FieldLastLogin: s.now()}, "login recorded")
}

func (s *UserService) update(ctx context.Context, id model.ID, set map[string]any, verb string) (*model.User, error) {
	u, found, err := s.repo.UpdateByID(ctx, id, store.Update{Set: set}, model.UserRolesPermissions)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("user", id.String())
	}
	slog.Info("User "+verb, "user_id", id)
	return u, nil
}

// SoftDelete deactivates the user.
func (s *UserService) SoftDelete(ctx context.Context, id model.ID) (*model.User, error) {
	return s.mutate(ctx, id, "deactivated", s.repo.SoftDelete)
}

func (s *UserService) Restore(ctx context.Context, id model.ID) (*model.User, error) {
	return s.mutate(ctx, id, "restored", s.repo.Restore)
}

// HardDelete removes the user. Roles are not touched.
func (s *UserService) HardDelete(ctx context.Context, id model.ID) (*model.User, error) {
	return s.mutate(ctx, id, "deleted", s.repo.HardDelete)
}

func (s *UserService) mutate(ctx context.Context, id model.ID, verb string, op func(context.Context, model.ID) (*model.User, bool, error)) (*model.User, error) {
	u, found, err := op(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("user", id.String())
	}
	slog.Info("User "+verb, "user_id", id)
	return u, nil
}

// AssignRoles replaces the user's role set; an empty list clears it.
func (s *UserService) AssignRoles(ctx context.Context, id model.ID, roleIDs []model.ID) (*model.User, error) {
	return s.roles.SetMembers(ctx, id, roleIDs)
}

func (s *UserService) AddRoles(ctx context.Context, id model.ID, roleIDs []model.ID) (*model.User, error) {
	return s.roles.AddMembers(ctx, id, roleIDs)
}

func (s *UserService) RemoveRoles(ctx context.Context, id model.ID, roleIDs []model.ID) (*model.User, error) {
	return s.roles.RemoveMembers(ctx, id, roleIDs)
}

// ListRoles returns the user's roles, each with its permissions resolved.
func (s *UserService) ListRoles(ctx context.Context, id model.ID) ([]*model.Role, error) {
	return s.roles.ListMembers(ctx, id)
}

func (s *UserService) HasRole(ctx context.Context, id, roleID model.ID) (bool, error) {
	return s.roles.HasMember(ctx, id, roleID)
}

func (s *UserService) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	active, err := s.repo.Count(ctx, query.Eq{Field: model.FieldIsActive, Value: true})
	if err != nil {
		return Stats{}, err
	}
	verified, err := s.repo.Count(ctx, query.Eq{Field: model.FieldEmailVerified, Value: true})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Total:              total,
		Active:             active,
		Inactive:           total - active,
		Verified:           verified,
		Unverified:         total - verified,
		ActivePercentage:   model.Percentage(active, total),
		VerifiedPercentage: model.Percentage(verified, total),
	}, nil
}

// checkUnique rejects a username or email held by a user other than self.
func (s *UserService) checkUnique(ctx context.Context, self model.ID, username, email *string) error {
	check := func(field, value string) error {
		filter := query.Filter(query.Eq{Field: field, Value: value})
		if self != "" {
			filter = query.AllOf(filter, query.Ne{Field: model.FieldID, Value: self})
		}
		taken, err := s.repo.Exists(ctx, filter)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.Conflict("user", field, value)
		}
		return nil
	}
	if username != nil {
		if err := check(model.FieldUsername, *username); err != nil {
			return err
		}
	}
	if email != nil {
		if err := check(model.FieldEmail, *email); err != nil {
			return err
		}
	}
	return nil
}
