package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskgun/internal/metrics"
	"github.com/hitoshi/taskgun/internal/middleware"
	"github.com/hitoshi/taskgun/internal/model"
)

// AuthGate はハンドラーが必要とする認可操作。authz.Gateの部分集合として定義する。
type AuthGate interface {
	GetUserID(r *http.Request) (string, bool)
	RequireUser(ctx context.Context, r *http.Request) (*model.PublicUser, error)
	RedirectToSignIn(w http.ResponseWriter, r *http.Request)
}

// meResponse は現在のユーザー情報のレスポンス。匿名の場合userはnull。
type meResponse struct {
	User  *model.PublicUser `json:"user"`
	Theme model.ThemeMode   `json:"theme"`
}

// UserHandler はユーザー情報と退会のHTTPハンドラー。
type UserHandler struct {
	users    UserServiceInterface
	sessions SessionManager
	gate     AuthGate
	events   EventRecorder
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserServiceInterface, sessions SessionManager, gate AuthGate, events EventRecorder) *UserHandler {
	if events == nil {
		events = metrics.NopCollector{}
	}
	return &UserHandler{
		users:    users,
		sessions: sessions,
		gate:     gate,
		events:   events,
	}
}

// Me は現在のユーザー情報とテーマ設定を返す。
// セッションが削除済みユーザーを指している場合はCookieをクリアしてサインインへリダイレクトする。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.gate.RequireUser(r.Context(), r)
	if errors.Is(err, model.ErrSignInRequired) {
		h.gate.RedirectToSignIn(w, r)
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:  user,
		Theme: themeFromRequest(r),
	})
}

// DeleteAccount はユーザーを退会させ、セッションを破棄してサインアップページへリダイレクトする。
// POST /delete-account
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.gate.RedirectToSignIn(w, r)
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		h.events.RecordAuthEvent(eventDeleteAccount, metrics.OutcomeFailure)
		if errors.Is(err, model.ErrUserNotFound) {
			h.gate.RedirectToSignIn(w, r)
			return
		}
		handleServiceError(w, err)
		return
	}

	cookie, err := h.sessions.Destroy(r.Context(), h.sessions.GetSession(r))
	if err != nil {
		slog.Error("failed to destroy session", slog.String("error", err.Error()))
	}

	h.events.RecordAuthEvent(eventDeleteAccount, metrics.OutcomeSuccess)
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/signup", http.StatusSeeOther)
}
