// Package authz はリクエストのセッションから現在のユーザーを解決し、
// サインイン要求を強制する。
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskgun/internal/model"
	"github.com/hitoshi/taskgun/internal/session"
)

// SignInPath はサインインページのパス。
const SignInPath = "/signin"

// SessionReader はGateが必要とするセッション操作。
type SessionReader interface {
	GetSession(r *http.Request) *session.Handle
	ClearCookie() *http.Cookie
}

// UserFinder はユーザー取得インターフェース。
type UserFinder interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Gate はリクエストのユーザーIDを解決する。
type Gate struct {
	sessions SessionReader
	users    UserFinder
}

// NewGate はGateを生成する。
func NewGate(sessions SessionReader, users UserFinder) *Gate {
	return &Gate{
		sessions: sessions,
		users:    users,
	}
}

// GetUserID はセッションのユーザーIDを返す。匿名の場合はfalseを返す。
func (g *Gate) GetUserID(r *http.Request) (string, bool) {
	userID := g.sessions.GetSession(r).UserID()
	return userID, userID != ""
}

// RequireUserID はセッションのユーザーIDを返す。匿名の場合はErrSignInRequiredを返す。
// 呼び出し側はRedirectToSignInでサインインページへ誘導すること。
func (g *Gate) RequireUserID(r *http.Request) (string, error) {
	userID, ok := g.GetUserID(r)
	if !ok {
		return "", model.ErrSignInRequired
	}
	return userID, nil
}

// RequireUser は表示用のユーザー情報を返す。匿名の場合は(nil, nil)を返す。
// セッションが存在しないユーザーを指している場合はErrSignInRequiredを返す。
func (g *Gate) RequireUser(ctx context.Context, r *http.Request) (*model.PublicUser, error) {
	userID, ok := g.GetUserID(r)
	if !ok {
		return nil, nil
	}

	u, err := g.users.GetUser(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		slog.Warn("session references a missing user", slog.String("user_id", userID))
		return nil, model.ErrSignInRequired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session user: %w", err)
	}
	return u.Public(), nil
}

// RedirectToSignIn はセッションCookieをクリアしてサインインページへリダイレクトする。
func (g *Gate) RedirectToSignIn(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, g.sessions.ClearCookie())
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}
