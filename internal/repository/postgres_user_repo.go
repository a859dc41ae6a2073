package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/taskgun/internal/model"
)

const selectUserColumns = `SELECT id, created_at, name, email, password_salt, password_hash, tasks,
       forgot_password_token, forgot_password_token_expire_at
  FROM users`

// userRow はusersテーブルの1行を表す。tasksはJSONB配列のまま受け取る。
type userRow struct {
	ID                          string         `db:"id"`
	CreatedAt                   time.Time      `db:"created_at"`
	Name                        string         `db:"name"`
	Email                       string         `db:"email"`
	PasswordSalt                string         `db:"password_salt"`
	PasswordHash                string         `db:"password_hash"`
	Tasks                       []byte         `db:"tasks"`
	ForgotPasswordToken         sql.NullString `db:"forgot_password_token"`
	ForgotPasswordTokenExpireAt sql.NullInt64  `db:"forgot_password_token_expire_at"`
}

func (row *userRow) toModel() (*model.User, error) {
	tasks := []model.Task{}
	if len(row.Tasks) > 0 {
		if err := json.Unmarshal(row.Tasks, &tasks); err != nil {
			return nil, fmt.Errorf("failed to decode tasks: %w", err)
		}
	}

	return &model.User{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		Name:      row.Name,
		Email:     row.Email,
		Password: model.Credential{
			Salt: row.PasswordSalt,
			Hash: row.PasswordHash,
		},
		Tasks:                       tasks,
		ForgotPasswordToken:         row.ForgotPasswordToken.String,
		ForgotPasswordTokenExpireAt: row.ForgotPasswordTokenExpireAt.Int64,
	}, nil
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE email = $1 ORDER BY created_at LIMIT 1`, email)
}

// FindByResetToken はパスワードリセットトークンでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByResetToken(ctx context.Context, token string) (*model.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE forgot_password_token = $1 LIMIT 1`, token)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return row.toModel()
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	tasks := user.Tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, created_at, name, email, password_salt, password_hash, tasks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.CreatedAt, user.Name, user.Email,
		user.Password.Salt, user.Password.Hash, string(tasksJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessionsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// SetResetToken はパスワードリセットトークンを上書き保存する。
func (r *PostgresUserRepo) SetResetToken(ctx context.Context, userID, token string, expireAt int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET forgot_password_token = $2, forgot_password_token_expire_at = $3
		  WHERE id = $1`,
		userID, token, expireAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	return nil
}

// UpdatePassword は資格情報を置き換え、リセットトークンをクリアする。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID string, cred model.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET password_salt = $2, password_hash = $3,
		        forgot_password_token = NULL, forgot_password_token_expire_at = NULL
		  WHERE id = $1`,
		userID, cred.Salt, cred.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
