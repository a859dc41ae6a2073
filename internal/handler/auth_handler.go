// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/taskgun/internal/metrics"
	"github.com/hitoshi/taskgun/internal/model"
	"github.com/hitoshi/taskgun/internal/session"
	"github.com/hitoshi/taskgun/internal/validation"
)

// フォームのフィールド名
const (
	formName            = "name"
	formEmail           = "email"
	formPassword        = "password"
	formNewPassword     = "new-password"
	formConfirmPassword = "confirm-password"
)

// 認証イベント名（メトリクスのeventラベル）
const (
	eventSignup        = "signup"
	eventSignin        = "signin"
	eventSignout       = "signout"
	eventResetRequest  = "password_reset_request"
	eventResetPassword = "password_reset"
	eventDeleteAccount = "delete_account"
)

// UserServiceInterface はユーザー関連ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	CreateUser(ctx context.Context, name, email, password string) (string, error)
	VerifyUser(ctx context.Context, email, password string) (string, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	InitiatePasswordReset(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, token, newPassword string) (string, error)
}

// SessionManager はハンドラーが必要とするセッション操作。
type SessionManager interface {
	GetSession(r *http.Request) *session.Handle
	Commit(ctx context.Context, h *session.Handle) (*http.Cookie, error)
	Destroy(ctx context.Context, h *session.Handle) (*http.Cookie, error)
	ClearCookie() *http.Cookie
}

// EventRecorder はドメインイベントのメトリクス記録インターフェース。
type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
	RecordTaskIntent(intent string)
}

// AuthHandler はサインアップ・サインイン・パスワードリセットのHTTPハンドラー。
type AuthHandler struct {
	users    UserServiceInterface
	sessions SessionManager
	events   EventRecorder
}

// NewAuthHandler はAuthHandlerを生成する。eventsがnilの場合は記録しない。
func NewAuthHandler(users UserServiceInterface, sessions SessionManager, events EventRecorder) *AuthHandler {
	if events == nil {
		events = metrics.NopCollector{}
	}
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		events:   events,
	}
}

// Signup はアカウントを作成し、サインインページへリダイレクトする。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue(formName)
	email := r.PostFormValue(formEmail)
	password := r.PostFormValue(formPassword)

	if errs := validation.ValidateAuthForm(validation.AuthFields{
		Name:     &name,
		Email:    &email,
		Password: &password,
	}); errs != nil {
		handleFormError(w, errs)
		return
	}

	if _, err := h.users.CreateUser(r.Context(), name, email, password); err != nil {
		h.events.RecordAuthEvent(eventSignup, metrics.OutcomeFailure)
		handleFormError(w, err)
		return
	}

	h.events.RecordAuthEvent(eventSignup, metrics.OutcomeSuccess)
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

// Signin は資格情報を検証してセッションを発行し、トップページへリダイレクトする。
// POST /signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue(formEmail)
	password := r.PostFormValue(formPassword)

	if errs := validation.ValidateAuthForm(validation.AuthFields{
		Email:    &email,
		Password: &password,
	}); errs != nil {
		handleFormError(w, errs)
		return
	}

	userID, err := h.users.VerifyUser(r.Context(), email, password)
	if err != nil {
		h.events.RecordAuthEvent(eventSignin, metrics.OutcomeFailure)
		// 失敗時はCookieをクリアし、次回のサインインで新しいセッションIDを発行させる
		http.SetCookie(w, h.sessions.ClearCookie())
		handleFormError(w, err)
		return
	}

	handle := h.sessions.GetSession(r)
	handle.SetUserID(userID)
	cookie, err := h.sessions.Commit(r.Context(), handle)
	if err != nil {
		h.events.RecordAuthEvent(eventSignin, metrics.OutcomeFailure)
		handleFormError(w, err)
		return
	}

	h.events.RecordAuthEvent(eventSignin, metrics.OutcomeSuccess)
	slog.Info("user signed in", slog.String("user_id", userID))
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Signout はセッションを破棄し、サインインページへリダイレクトする。
// POST /signout
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	handle := h.sessions.GetSession(r)

	cookie, err := h.sessions.Destroy(r.Context(), handle)
	if err != nil {
		// Cookieは失効させるため、ストア側の削除失敗はログのみ
		slog.Error("failed to destroy session", slog.String("error", err.Error()))
	}

	h.events.RecordAuthEvent(eventSignout, metrics.OutcomeSuccess)
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

// ForgotPassword はパスワードリセットトークンを発行し、リセットページへリダイレクトする。
// 未登録のメールアドレスでも同じ形のレスポンスを返す（トークンは空）。
// POST /forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue(formEmail)

	if errs := validation.ValidateAuthForm(validation.AuthFields{Email: &email}); errs != nil {
		handleFormError(w, errs)
		return
	}

	token, err := h.users.InitiatePasswordReset(r.Context(), email)
	if err != nil && !errors.Is(err, model.ErrResetRequested) {
		h.events.RecordAuthEvent(eventResetRequest, metrics.OutcomeFailure)
		handleFormError(w, err)
		return
	}

	h.events.RecordAuthEvent(eventResetRequest, metrics.OutcomeSuccess)
	http.Redirect(w, r, "/reset-password?token="+url.QueryEscape(token), http.StatusSeeOther)
}

// ResetPassword はリセットトークンを検証してパスワードを更新し、サインインページへリダイレクトする。
// POST /reset-password?token=xxx
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	newPassword := r.PostFormValue(formNewPassword)
	confirmPassword := r.PostFormValue(formConfirmPassword)

	if errs := validation.ValidateAuthForm(validation.AuthFields{
		NewPassword:     &newPassword,
		ConfirmPassword: &confirmPassword,
	}); errs != nil {
		handleFormError(w, errs)
		return
	}

	if _, err := h.users.UpdatePassword(r.Context(), token, newPassword); err != nil {
		h.events.RecordAuthEvent(eventResetPassword, metrics.OutcomeFailure)
		handleFormError(w, err)
		return
	}

	h.events.RecordAuthEvent(eventResetPassword, metrics.OutcomeSuccess)
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}
