// Package user はユーザー管理のドメインロジックを提供する。
// アカウント作成、資格情報の検証、退会、パスワードリセットを扱う。
package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskgun/internal/credential"
	"github.com/hitoshi/taskgun/internal/model"
	"github.com/hitoshi/taskgun/internal/repository"
)

// DefaultResetTokenTTL はパスワードリセットトークンの既定の有効期間。
const DefaultResetTokenTTL = time.Hour

// SessionDeleter はユーザーのセッション一括削除インターフェース。
type SessionDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// ServiceConfig はユーザーサービスの設定。
type ServiceConfig struct {
	ResetTokenTTL time.Duration
	// Now は現在時刻を返す。nilの場合はtime.Nowを使う。
	Now func() time.Time
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo       repository.UserRepository
	sessionDeleter SessionDeleter
	resetTokenTTL  time.Duration
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sessionDeleter SessionDeleter, config ServiceConfig) *Service {
	s := &Service{
		userRepo:       userRepo,
		sessionDeleter: sessionDeleter,
		resetTokenTTL:  config.ResetTokenTTL,
		now:            config.Now,
	}
	if s.resetTokenTTL <= 0 {
		s.resetTokenTTL = DefaultResetTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateUser はユーザーを作成し、そのIDを返す。
// 同じメールアドレスのユーザーが既に存在する場合はErrEmailTakenを返す。
// 存在確認と挿入は別操作のため、同時登録では重複が起こりうる。
func (s *Service) CreateUser(ctx context.Context, name, email, password string) (string, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return "", model.ErrEmailTaken
	}

	cred, err := credential.Hash(password, "")
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		ID:        uuid.New().String(),
		CreatedAt: s.now(),
		Name:      name,
		Email:     email,
		Password:  cred,
		Tasks:     []model.Task{},
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", u.ID),
		slog.String("email", email),
	)
	return u.ID, nil
}

// VerifyUser はメールアドレスとパスワードを検証し、ユーザーIDを返す。
// メールアドレスが未登録の場合もパスワードが不一致の場合も、同じErrInvalidCredentialsを返す。
func (s *Service) VerifyUser(ctx context.Context, email, password string) (string, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if u == nil {
		return "", model.ErrInvalidCredentials
	}

	if !credential.Verify(password, u.Password.Salt, u.Password.Hash) {
		return "", model.ErrInvalidCredentials
	}

	return u.ID, nil
}

// GetUser は指定IDのユーザーを返す。存在しない場合はErrUserNotFoundを返す。
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.ErrUserNotFound
	}
	return u, nil
}

// DeleteUser はユーザーを埋め込みタスクごと削除する。
// 削除順序: sessions → user
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.ErrUserNotFound
	}

	if s.sessionDeleter != nil {
		if err := s.sessionDeleter.DeleteByUserID(ctx, id); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", id),
	)
	return nil
}

// InitiatePasswordReset はパスワードリセットトークンを発行して返す。
// 既存のトークンは上書きされる。
// 未登録のメールアドレスにはErrResetRequestedを返す。呼び出し側は成功時と同じ応答として扱うこと。
func (s *Service) InitiatePasswordReset(ctx context.Context, email string) (string, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to find user by email: %w", err)
	}
	if u == nil {
		return "", model.ErrResetRequested
	}

	token, err := generateResetToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	expireAt := s.now().Add(s.resetTokenTTL).UnixMilli()
	if err := s.userRepo.SetResetToken(ctx, u.ID, token, expireAt); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	slog.Info("password reset initiated", slog.String("user_id", u.ID))
	return token, nil
}

// UpdatePassword はリセットトークンを検証し、パスワードを置き換える。
// 成功時はトークンと有効期限をクリアし、ユーザーIDを返す。
func (s *Service) UpdatePassword(ctx context.Context, token, newPassword string) (string, error) {
	if token == "" {
		return "", model.ErrInvalidToken
	}

	u, err := s.userRepo.FindByResetToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to find user by reset token: %w", err)
	}
	if u == nil {
		return "", model.ErrInvalidToken
	}

	if s.now().UnixMilli() > u.ForgotPasswordTokenExpireAt {
		return "", model.ErrTokenExpired
	}

	cred, err := credential.Hash(newPassword, "")
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, u.ID, cred); err != nil {
		return "", fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password updated", slog.String("user_id", u.ID))
	return u.ID, nil
}

// generateResetToken は暗号的に安全なリセットトークンを生成する。
func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
