// auth.go — вход сотрудников по логину и паролю, выход.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/senadocs/internal/ui/auth"
	"github.com/bigkaa/senadocs/internal/ui/pages"
)

// AuthHandler — обработчики аутентификации UI.
type AuthHandler struct {
	staff          *auth.Staff
	sessionManager *auth.SessionManager
	logger         *slog.Logger
}

// NewAuthHandler создаёт новый AuthHandler.
func NewAuthHandler(staff *auth.Staff, sessionManager *auth.SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		staff:          staff,
		sessionManager: sessionManager,
		logger:         logger.With(slog.String("component", "ui_auth")),
	}
}

// HandleLoginPage — GET /login. С действующей сессией — redirect на /.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if session, err := h.sessionManager.GetSessionFromRequest(r); err == nil && session != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	renderPage(w, r, http.StatusOK, pages.Login(pages.LoginData{}), h.logger)
}

// HandleLogin — POST /login. Проверяет пароль, создаёт session cookie, redirect на /.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderPage(w, r, http.StatusBadRequest, pages.Login(pages.LoginData{Error: "Requisição inválida."}), h.logger)
		return
	}
	login := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	if h.staff.Empty() {
		h.logger.Error("Вход невозможен: SD_STAFF_USERS не задана")
		renderPage(w, r, http.StatusServiceUnavailable, pages.Login(pages.LoginData{
			Username: login,
			Error:    "Nenhum usuário configurado. Avise o administrador.",
		}), h.logger)
		return
	}

	if err := h.staff.Authenticate(login, password); err != nil {
		h.logger.Warn("Неудачная попытка входа",
			slog.String("username", login),
			slog.String("remote_addr", r.RemoteAddr),
		)
		renderPage(w, r, http.StatusUnauthorized, pages.Login(pages.LoginData{
			Username: login,
			Error:    "Usuário ou senha inválidos.",
		}), h.logger)
		return
	}

	if err := h.sessionManager.SetSessionCookie(w, h.sessionManager.NewSession(login)); err != nil {
		h.logger.Error("Ошибка создания session cookie", slog.String("error", err.Error()))
		http.Error(w, "Erro interno", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Сотрудник вошёл", slog.String("username", login))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout — POST /logout. Удаляет session cookie, redirect на /login.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if session, err := h.sessionManager.GetSessionFromRequest(r); err == nil && session != nil {
		h.logger.Info("Сотрудник вышел", slog.String("username", session.Username))
	}
	h.sessionManager.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleHome — GET /. Стартовая страница.
func (h *AuthHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, pages.Home(username(r)), h.logger)
}
