package handler

import (
	"net/http"

	"github.com/aidar/taskhub/internal/domain"
	"github.com/aidar/taskhub/internal/middleware"
	"github.com/aidar/taskhub/internal/service"
)

// UserHandler обрабатывает эндпоинты пользователей
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler создает новый UserHandler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsersResponse представляет ответ со списком пользователей
type ListUsersResponse struct {
	Users []*domain.User `json:"users"`
}

// SetRoleRequest представляет тело запроса на смену роли
type SetRoleRequest struct {
	Role domain.Role `json:"role" validate:"required,oneof=admin member"`
}

// Me обрабатывает GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, r, http.StatusOK, middleware.UserFromContext(r.Context()))
}

// List обрабатывает GET /users (только admin)
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	users, err := h.userService.List(r.Context(), middleware.UserFromContext(r.Context()), page)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListUsersResponse{Users: nonNil(users)})
}

// SetRole обрабатывает PATCH /users/{userID}/role (только admin)
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		HandleError(w, r, err)
		return
	}

	var req SetRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	user, err := h.userService.SetRole(r.Context(), middleware.UserFromContext(r.Context()), userID, req.Role)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, user)
}

// nonNil гарантирует, что пустой список сериализуется как [], а не null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
