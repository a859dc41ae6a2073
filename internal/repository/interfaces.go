// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/taskgun/internal/model"
)

// UserRepository はユーザードキュメントの永続化インターフェース。
// 取得系メソッドは埋め込みタスクを含むユーザー全体を返す。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// 比較は保存された値との完全一致（大文字小文字を区別する）。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByResetToken はパスワードリセットトークンでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByResetToken(ctx context.Context, token string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスの一意制約は持たない。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを埋め込みタスクごと削除する。
	// 関連するsessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// SetResetToken はパスワードリセットトークンと有効期限（エポックミリ秒）を上書き保存する。
	SetResetToken(ctx context.Context, userID, token string, expireAt int64) error

	// UpdatePassword は資格情報を置き換え、リセットトークンと有効期限をクリアする。
	UpdatePassword(ctx context.Context, userID string, cred model.Credential) error
}

// TaskRepository はユーザーに埋め込まれたタスクリストの更新インターフェース。
// 読み取りはUserRepository.FindByIDで行う。
// 各メソッドの戻り値boolは対象ユーザーが存在したかどうかを表す。
type TaskRepository interface {
	// AppendTask はタスクをリスト末尾に追加する。
	AppendTask(ctx context.Context, userID string, task model.Task) (bool, error)

	// ReplaceTask は同じIDのタスクを置き換える。リスト内の位置は変わらない。
	// ユーザーまたは該当タスクが存在しない場合はfalseを返す。
	ReplaceTask(ctx context.Context, userID string, task model.Task) (bool, error)

	// RemoveTask は指定IDのタスクを削除する。
	RemoveTask(ctx context.Context, userID, taskID string) (bool, error)

	// RemoveCompletedTasks は完了済みのタスクをすべて削除する。残りの順序は維持する。
	RemoveCompletedTasks(ctx context.Context, userID string) (bool, error)

	// RemoveAllTasks はタスクリストを空にする。
	RemoveAllTasks(ctx context.Context, userID string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
