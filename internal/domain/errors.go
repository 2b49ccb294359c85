package domain

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок. Конкретные ошибки ниже оборачивают один из них,
// поэтому обработчик HTTP проверяет только вид через errors.Is
var (
	// ErrValidation возвращается при некорректных входных данных
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized возвращается при неудачной аутентификации
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden возвращается когда пользователь аутентифицирован, но не имеет доступа
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound возвращается когда ресурс не найден
	ErrNotFound = errors.New("resource not found")

	// ErrConflict возвращается при нарушении уникальности
	ErrConflict = errors.New("conflict")
)

// Конкретные доменные ошибки
var (
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

	ErrNotTeamMember = fmt.Errorf("%w: user is not a member of the team", ErrForbidden)
	ErrAdminRequired = fmt.Errorf("%w: administrator role required", ErrForbidden)
	ErrNotAuthor     = fmt.Errorf("%w: only the author can delete this comment", ErrForbidden)

	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrTeamNotFound    = fmt.Errorf("%w: team not found", ErrNotFound)
	ErrMemberNotFound  = fmt.Errorf("%w: team membership not found", ErrNotFound)
	ErrProjectNotFound = fmt.Errorf("%w: project not found", ErrNotFound)
	ErrTaskNotFound    = fmt.Errorf("%w: task not found", ErrNotFound)
	ErrCommentNotFound = fmt.Errorf("%w: comment not found", ErrNotFound)

	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrAlreadyMember = fmt.Errorf("%w: user is already a team member", ErrConflict)
	ErrTeamExists    = fmt.Errorf("%w: team already exists", ErrConflict)
	ErrProjectExists = fmt.Errorf("%w: project with this name already exists in the team", ErrConflict)
)

// NewValidationError создает ошибку валидации с описанием
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorCode представляет коды ошибок API
type ErrorCode string

// Коды ошибок API
const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR" // Некорректный запрос
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"     // Нет или неверный токен/пароль
	CodeForbidden    ErrorCode = "FORBIDDEN"        // Нет прав на операцию
	CodeNotFound     ErrorCode = "NOT_FOUND"        // Ресурс не найден
	CodeConflict     ErrorCode = "CONFLICT"         // Нарушение уникальности
	CodeRateLimited  ErrorCode = "RATE_LIMITED"     // Превышен лимит запросов
	CodeInternal     ErrorCode = "INTERNAL_ERROR"   // Непредвиденная ошибка
)

// MapErrorToCode преобразует доменные ошибки в коды ошибок API
func MapErrorToCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}
