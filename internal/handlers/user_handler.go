package handlers

import (
	"net/http"

	"ticket-marketplace/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// CreateUser - POST /users, called by the storefront after sign-up.
func (h *UserHandler) CreateUser(e *core.RequestEvent) error {
	var req services.CreateUserRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	u, err := h.users.CreateUser(e.Request.Context(), req)
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, inserted(u.ID))
}

// GetRole - GET /users/{email}/role
func (h *UserHandler) GetRole(e *core.RequestEvent) error {
	role, err := h.users.RoleOf(e.Request.Context(), e.Request.PathValue("email"))
	if err != nil {
		return apiError(err)
	}
	return e.JSON(http.StatusOK, map[string]any{"role": role})
}
