package model

import "time"

// Credential はパスワードを平文で保持せずに表現するsaltとhashの組。
type Credential struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// User はサービス利用ユーザーを表す。
// タスクはユーザーのドキュメントに埋め込まれ、ユーザーと同じライフサイクルを持つ。
type User struct {
	ID        string
	CreatedAt time.Time
	Name      string
	Email     string
	Password  Credential
	Tasks     []Task

	// パスワードリセット用トークン。未発行の場合は空文字列。
	ForgotPasswordToken string
	// トークンの有効期限（エポックミリ秒）。未発行の場合は0。
	ForgotPasswordTokenExpireAt int64
}

// Public は表示用のユーザー情報を返す。
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}

// PublicUser は画面表示に使うユーザー情報。資格情報やタスクは含まない。
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
