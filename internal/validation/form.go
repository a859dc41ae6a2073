// Package validation はフォーム入力の検証を提供する。
// エラーはフィールド名をキーとしたmodel.FieldErrorsで返し、フォームにそのまま表示できる。
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/taskgun/internal/model"
)

const (
	minNameLength     = 3
	minPasswordLength = 8
)

// emailPattern は部分一致で判定する。前後に余分な文字があっても通過する。
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// フィールド名
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldNewPassword     = "newPassword"
	FieldConfirmPassword = "confirmPassword"
	FieldDescription     = "description"
)

// AuthFields は認証系フォームの入力値。
// nilのフィールドはフォームに存在しないものとして検証しない。
type AuthFields struct {
	Name            *string
	Email           *string
	Password        *string
	NewPassword     *string
	ConfirmPassword *string
}

// ValidateAuthForm は認証系フォームを検証する。問題がなければnilを返す。
// NewPasswordとConfirmPasswordは両方が存在する場合のみ検証する。
func ValidateAuthForm(f AuthFields) model.FieldErrors {
	errs := model.FieldErrors{}

	if f.Name != nil {
		switch {
		case strings.TrimSpace(*f.Name) == "":
			errs[FieldName] = "Name is required."
		case utf8.RuneCountInString(*f.Name) < minNameLength:
			errs[FieldName] = "Name must be at least 3 characters long."
		}
	}

	if f.Email != nil {
		switch {
		case strings.TrimSpace(*f.Email) == "":
			errs[FieldEmail] = "Email is required."
		case !emailPattern.MatchString(*f.Email):
			errs[FieldEmail] = "Email address is invalid."
		}
	}

	if f.Password != nil {
		switch {
		case strings.TrimSpace(*f.Password) == "":
			errs[FieldPassword] = "Password is required."
		case utf8.RuneCountInString(*f.Password) < minPasswordLength:
			errs[FieldPassword] = "Password must be at least 8 characters long."
		}
	}

	if f.NewPassword != nil && f.ConfirmPassword != nil {
		switch {
		case *f.NewPassword == "":
			errs[FieldNewPassword] = "New password is required."
		case utf8.RuneCountInString(*f.NewPassword) < minPasswordLength:
			errs[FieldNewPassword] = "New password must be at least 8 characters long."
		}

		switch {
		case *f.ConfirmPassword == "":
			errs[FieldConfirmPassword] = "Confirm password is required."
		case utf8.RuneCountInString(*f.ConfirmPassword) < minPasswordLength:
			errs[FieldConfirmPassword] = "Confirm password must be at least 8 characters long."
		case *f.ConfirmPassword != *f.NewPassword:
			errs[FieldConfirmPassword] = "Passwords do not match."
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateTaskDescription はサニタイズ済みのタスク本文を検証する。
func ValidateTaskDescription(description string) model.FieldErrors {
	if strings.TrimSpace(description) == "" {
		return model.FieldErrors{FieldDescription: "Description is required."}
	}
	return nil
}
