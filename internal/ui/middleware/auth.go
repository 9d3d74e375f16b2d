// Пакет middleware — HTTP middleware для UI.
// auth.go — проверка UI-сессии (cookie-based).
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/senadocs/internal/api/errors"
	"github.com/bigkaa/senadocs/internal/ui/auth"
)

// LoginPath — страница входа.
const LoginPath = "/login"

// contextKey — тип для ключей контекста UI (избегаем коллизий с API middleware).
type contextKey string

const (
	// ContextKeyUISession — данные UI-сессии в контексте запроса.
	ContextKeyUISession contextKey = "ui_session"
)

// UIAuth — middleware для проверки аутентификации сотрудников.
// Извлекает сессию из зашифрованного cookie; без сессии HTML-маршруты
// перенаправляются на /login, JSON-маршруты получают 401.
type UIAuth struct {
	sessionManager *auth.SessionManager
	logger         *slog.Logger
}

// NewUIAuth создаёт новый UIAuth middleware.
func NewUIAuth(sessionManager *auth.SessionManager, logger *slog.Logger) *UIAuth {
	return &UIAuth{
		sessionManager: sessionManager,
		logger:         logger.With(slog.String("component", "ui_auth_middleware")),
	}
}

// Middleware возвращает HTTP middleware для HTML-маршрутов.
func (ua *UIAuth) Middleware() func(http.Handler) http.Handler {
	return ua.require(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
}

// APIMiddleware возвращает HTTP middleware для JSON-маршрутов под сессией.
func (ua *UIAuth) APIMiddleware() func(http.Handler) http.Handler {
	return ua.require(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.Unauthorized(w, "Sessão expirada. Entre novamente.")
	})
}

func (ua *UIAuth) require(deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Извлекаем сессию из cookie
			session, err := ua.sessionManager.GetSessionFromRequest(r)
			if err != nil {
				ua.logger.Debug("Ошибка чтения UI-сессии",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				// Повреждённый или истёкший cookie — очищаем
				ua.sessionManager.ClearSessionCookie(w)
				deny(w, r)
				return
			}

			// 2. Если сессия отсутствует — отказ
			if session == nil {
				deny(w, r)
				return
			}

			// 3. Помещаем сессию в контекст
			ctx := context.WithValue(r.Context(), ContextKeyUISession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext извлекает SessionData из контекста запроса.
// Возвращает nil если сессия не найдена (не прошёл через UIAuth middleware).
func SessionFromContext(ctx context.Context) *auth.SessionData {
	session, ok := ctx.Value(ContextKeyUISession).(*auth.SessionData)
	if !ok {
		return nil
	}
	return session
}

// WithSession помещает сессию в контекст (для тестов обработчиков).
func WithSession(ctx context.Context, session *auth.SessionData) context.Context {
	return context.WithValue(ctx, ContextKeyUISession, session)
}
