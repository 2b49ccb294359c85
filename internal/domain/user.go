package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role определяет роль пользователя в системе
type Role string

// Возможные роли пользователя
const (
	RoleAdmin  Role = "admin"  // Администратор: управление пользователями и командами
	RoleMember Role = "member" // Обычный участник
)

// IsValid проверяет, что роль входит в допустимый набор
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// User представляет зарегистрированного пользователя
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Никогда не отдается наружу
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin возвращает true если пользователь является администратором
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
