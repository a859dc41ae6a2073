// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeResetRequested     = "RESET_REQUESTED"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnknownIntent      = "UNKNOWN_INTENT"
	ErrCodeUnexpectedStore    = "UNEXPECTED_STORE_ERROR"
	ErrCodeSignInRequired     = "SIGN_IN_REQUIRED"
)

// ResetRequestedMessage はパスワードリセット要求に対する応答文言。
// 登録済み・未登録のメールアドレスのどちらにも同じ文言を返す。
const ResetRequestedMessage = "If an account exists for that email address, a password reset link has been issued."

// 以下のエラーは同一性（errors.Is）で判定できるよう共有の値として定義する。
var (
	ErrUserNotFound = &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Please sign in again.",
	}

	ErrTaskNotFound = &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  "Task not found.",
		Category: "task",
		Action:   "Reload the task list and try again.",
	}

	ErrEmailTaken = &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "The email address already exists.",
		Category: "validation",
		Action:   "Sign in or use a different email address.",
	}

	// ErrInvalidCredentials はメールアドレス不明とパスワード不一致の両方で返す。
	// どちらが原因かを区別してはならない。
	ErrInvalidCredentials = &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "Check your email address and password.",
	}

	ErrInvalidToken = &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "The password reset link is invalid.",
		Category: "auth",
		Action:   "Request a new password reset link.",
	}

	ErrTokenExpired = &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "The password reset link has expired.",
		Category: "auth",
		Action:   "Request a new password reset link.",
	}

	// ErrResetRequested は未登録メールアドレスへのリセット要求で返す。
	// 呼び出し側は成功時と同一の応答として描画する。
	ErrResetRequested = &APIError{
		Code:     ErrCodeResetRequested,
		Message:  ResetRequestedMessage,
		Category: "auth",
		Action:   "Follow the password reset link.",
	}

	ErrUnknownIntent = &APIError{
		Code:     ErrCodeUnknownIntent,
		Message:  "Unknown intent",
		Category: "validation",
		Action:   "Submit one of the supported task actions.",
	}

	// ErrUnexpectedStore はストア障害時にユーザーへ返す汎用エラー。
	// 内部エラーの詳細はログのみに記録する。
	ErrUnexpectedStore = &APIError{
		Code:     ErrCodeUnexpectedStore,
		Message:  "An unexpected error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}

	ErrSignInRequired = &APIError{
		Code:     ErrCodeSignInRequired,
		Message:  "Sign in required.",
		Category: "auth",
		Action:   "Please sign in.",
	}
)

// FieldErrors はフォームのフィールド名からエラーメッセージへのマップ。
// フォームにそのまま表示することを想定する。
type FieldErrors map[string]string

// Error はerrorインターフェースを実装する。
func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return fmt.Sprintf("[%s] %s", ErrCodeValidation, strings.Join(parts, "; "))
}

// OrNil は空のFieldErrorsをnilとして返す。
func (fe FieldErrors) OrNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}
