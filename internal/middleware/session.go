// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// SessionGate はセッションからのユーザー解決に必要なインターフェース。
// authz.Gateの部分集合として定義する。
type SessionGate interface {
	GetUserID(r *http.Request) (string, bool)
	RedirectToSignIn(w http.ResponseWriter, r *http.Request)
}

// NewSessionContextMiddleware はセッションCookieからユーザーIDを解決し、
// サインイン済みの場合のみリクエストコンテキストに注入するミドルウェアを返す。
// 匿名リクエストはそのまま通過させる。
func NewSessionContextMiddleware(gate SessionGate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := gate.GetUserID(r); ok {
				r = r.WithContext(ContextWithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRequireSignInMiddleware はサインインを必須とするミドルウェアを返す。
// 未サインインのリクエストはセッションCookieをクリアしてサインインページへリダイレクトする。
func NewRequireSignInMiddleware(gate SessionGate) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. 先行ミドルウェアが解決済みならそれを使う
			if _, err := UserIDFromContext(r.Context()); err == nil {
				next.ServeHTTP(w, r)
				return
			}

			// 2. セッションを検証
			userID, ok := gate.GetUserID(r)
			if !ok {
				gate.RedirectToSignIn(w, r)
				return
			}

			// 3. 認証済みユーザーIDをコンテキストに注入
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// NewRedirectIfSignedInMiddleware はサインイン済みユーザーをtargetへリダイレクトするミドルウェアを返す。
// サインイン・サインアップなど匿名ユーザー向けページで使う。
func NewRedirectIfSignedInMiddleware(gate SessionGate, target string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signedIn := false
			if _, err := UserIDFromContext(r.Context()); err == nil {
				signedIn = true
			} else if _, ok := gate.GetUserID(r); ok {
				signedIn = true
			}

			if signedIn {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
