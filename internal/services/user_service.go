package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/internal/store"
	"ticket-marketplace/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type UserService struct {
	store store.Store
}

func NewUserService(st store.Store) *UserService {
	return &UserService{store: st}
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

// CreateUser registers a user with role "user". A second registration with
// the same email fails with status.ErrDuplicateEmail.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, invalid("Email is required")
	}

	u := &models.User{
		Email:    email,
		Name:     strings.TrimSpace(req.Name),
		PhotoURL: req.PhotoURL,
		Role:     models.RoleUser,
	}
	if err := invalidFields(validation.ValidateStruct(u,
		validation.Field(&u.Email, is.EmailFormat),
		validation.Field(&u.Name, validation.RuneLength(0, 255)),
	)); err != nil {
		return nil, err
	}
	if err := s.store.Users().Insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RoleOf returns the stored role, status.ErrNotFound for unknown emails.
func (s *UserService) RoleOf(ctx context.Context, email string) (models.Role, error) {
	u, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if u.Role == "" {
		return models.RoleUser, nil
	}
	return u.Role, nil
}

// Caller resolves the role of a verified email. Unknown users act with
// role "user".
func (s *UserService) Caller(ctx context.Context, email string) (Caller, error) {
	role, err := s.RoleOf(ctx, email)
	if errors.Is(err, status.ErrNotFound) {
		return Caller{Email: normalizeEmail(email), Role: models.RoleUser}, nil
	}
	if err != nil {
		return Caller{}, err
	}
	return Caller{Email: normalizeEmail(email), Role: role}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.store.Users().List(ctx)
}

// SetRole changes a user's role. The fraud role is only reachable through
// CatalogService.MarkVendorFraud, which also hides the vendor's tickets.
func (s *UserService) SetRole(ctx context.Context, userID string, role models.Role) (store.UpdateResult, error) {
	var res store.UpdateResult

	switch role {
	case models.RoleUser, models.RoleVendor, models.RoleAdmin:
	default:
		return res, invalid("role must be one of user, vendor, admin")
	}

	u, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("user %s: %w", userID, err)
	}

	res.MatchedCount = 1
	if u.Role == role {
		return res, nil
	}

	u.Role = role
	if err := s.store.Users().Update(ctx, u); err != nil {
		return res, err
	}
	res.ModifiedCount = 1
	return res, nil
}
