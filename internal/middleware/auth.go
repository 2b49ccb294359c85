package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/aidar/taskhub/internal/domain"
)

// ContextKey это кастомный тип для ключей контекста
type ContextKey string

// UserKey ключ контекста для текущего пользователя
const UserKey ContextKey = "user"

// accessTokenParam используется браузерными websocket клиентами, которые не могут передать заголовок
const accessTokenParam = "access_token"

// UserResolver проверяет токен и возвращает пользователя, которому он выдан
type UserResolver interface {
	ResolveCurrentUser(ctx context.Context, token string) (*domain.User, error)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMiddleware создает middleware для валидации JWT токенов.
// Пользователь загружается из БД, поэтому смена роли действует сразу
func AuthMiddleware(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractToken(r)
			if !ok {
				respondError(w, r, http.StatusUnauthorized, domain.CodeUnauthorized, "missing or malformed authorization header")
				return
			}

			user, err := resolver.ResolveCurrentUser(r.Context(), token)
			if err != nil {
				if domain.MapErrorToCode(err) == domain.CodeUnauthorized {
					respondError(w, r, http.StatusUnauthorized, domain.CodeUnauthorized, "invalid or expired token")
					return
				}
				respondError(w, r, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// extractToken достает Bearer токен из заголовка Authorization.
// Для websocket upgrade дополнительно принимается параметр access_token
func extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		token = strings.TrimSpace(token)
		return token, token != ""
	}

	if websocket.IsWebSocketUpgrade(r) {
		token := r.URL.Query().Get(accessTokenParam)
		return token, token != ""
	}

	return "", false
}

// UserFromContext извлекает текущего пользователя из контекста
func UserFromContext(ctx context.Context) *domain.User {
	user, ok := ctx.Value(UserKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// WithUser кладет пользователя в контекст
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code domain.ErrorCode, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: errorDetail{Code: string(code), Message: message}})
}
