// Package session は署名付きセッションCookieの発行・読み取り・破棄を提供する。
//
// CookieにはセッションIDとユーザーIDを含むHS256署名付きトークンを格納し、
// セッションの実体はSessionRepositoryに保存する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/taskgun/internal/model"
	"github.com/hitoshi/taskgun/internal/repository"
)

// DefaultCookieName はセッションCookieの既定名。
const DefaultCookieName = "__session"

// DefaultMaxAge はセッションの既定の有効期間（秒）。30日。
const DefaultMaxAge = 60 * 60 * 24 * 30

// ErrNoUser はユーザーIDを持たないハンドルをコミットしようとした場合のエラー。
var ErrNoUser = errors.New("session has no user")

// Handle はリクエストごとのセッション状態。
// 新規ハンドルはIDを持たず、Commit時に新しいIDが割り当てられる。
type Handle struct {
	id     string
	userID string
}

// ID はセッションIDを返す。新規ハンドルでは空文字列。
func (h *Handle) ID() string { return h.id }

// UserID はセッションに紐づくユーザーIDを返す。匿名の場合は空文字列。
func (h *Handle) UserID() string { return h.userID }

// IsNew はハンドルがまだ永続化されていないかを返す。
func (h *Handle) IsNew() bool { return h.id == "" }

// SetUserID はセッションにユーザーIDを設定する。
// 別のユーザーに切り替える場合は既存のセッションIDを破棄し、次のCommitで新しいIDを発行する。
func (h *Handle) SetUserID(userID string) {
	if h.userID != userID {
		h.id = ""
	}
	h.userID = userID
}

// Config はセッションマネージャーの設定。
type Config struct {
	Secret     []byte
	CookieName string
	MaxAge     int // 秒
	Secure     bool
	Domain     string
	// Now は現在時刻を返す。nilの場合はtime.Nowを使う。
	Now func() time.Time
}

// Manager はセッションCookieとセッションストアを管理する。
type Manager struct {
	store  repository.SessionRepository
	config Config
}

// claims はCookieに格納するトークンのペイロード。
// セッションIDはjtiに格納する。
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// NewManager はManagerを生成する。
func NewManager(store repository.SessionRepository, config Config) *Manager {
	if config.CookieName == "" {
		config.CookieName = DefaultCookieName
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Manager{
		store:  store,
		config: config,
	}
}

// CookieName はセッションCookieの名前を返す。
func (m *Manager) CookieName() string {
	return m.config.CookieName
}

// GetSession はリクエストのCookieからセッションを復元する。
// Cookieがない、署名が不正、期限切れ、ストアに存在しない、ストア障害のいずれの場合も
// エラーにはせず新規の空ハンドルを返す。
func (m *Manager) GetSession(r *http.Request) *Handle {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil || cookie.Value == "" {
		return &Handle{}
	}

	c, err := m.parse(cookie.Value)
	if err != nil {
		slog.Debug("invalid session cookie", slog.String("error", err.Error()))
		return &Handle{}
	}

	session, err := m.store.FindByID(r.Context(), c.ID)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return &Handle{}
	}
	if session == nil || session.UserID != c.UserID {
		return &Handle{}
	}

	return &Handle{id: session.ID, userID: session.UserID}
}

// Commit はハンドルを永続化し、署名済みのセッションCookieを返す。
// 新規ハンドルには新しいセッションIDを発行する。
func (m *Manager) Commit(ctx context.Context, h *Handle) (*http.Cookie, error) {
	if h.userID == "" {
		return nil, ErrNoUser
	}

	now := m.config.Now()
	expiresAt := now.Add(time.Duration(m.config.MaxAge) * time.Second)

	if h.IsNew() {
		id, err := generateSessionID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session ID: %w", err)
		}

		s := &model.Session{
			ID:        id,
			UserID:    h.userID,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}
		if err := m.store.Create(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
		h.id = id
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        h.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: h.userID,
	})
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return m.cookie(signed, m.config.MaxAge), nil
}

// Destroy はセッションをストアから削除し、即時に失効するCookieを返す。
// ハンドルは匿名状態に戻る。
func (m *Manager) Destroy(ctx context.Context, h *Handle) (*http.Cookie, error) {
	if !h.IsNew() {
		if err := m.store.DeleteByID(ctx, h.id); err != nil {
			return m.ClearCookie(), fmt.Errorf("failed to delete session: %w", err)
		}
		slog.Info("session destroyed", slog.String("user_id", h.userID))
	}

	h.id = ""
	h.userID = ""
	return m.ClearCookie(), nil
}

// ClearCookie は即時に失効するセッションCookieを返す。
func (m *Manager) ClearCookie() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) parse(value string) (*claims, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(value, c,
		func(t *jwt.Token) (interface{}, error) {
			return m.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || c.ID == "" || c.UserID == "" {
		return nil, errors.New("invalid session token")
	}
	return c, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
