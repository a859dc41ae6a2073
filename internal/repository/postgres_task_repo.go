package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/taskgun/internal/model"
)

// PostgresTaskRepo はusers.tasks（JSONB配列）を更新するタスクリポジトリ。
// 追加・削除系は単一のUPDATE文で完結させ、同一ユーザーへの並行更新で変更が失われないようにする。
type PostgresTaskRepo struct {
	db *sqlx.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sqlx.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// AppendTask はタスクをリスト末尾に追加する。
func (r *PostgresTaskRepo) AppendTask(ctx context.Context, userID string, task model.Task) (bool, error) {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return false, fmt.Errorf("failed to encode task: %w", err)
	}

	return r.exec(ctx, "append task",
		`UPDATE users SET tasks = tasks || jsonb_build_array($2::jsonb) WHERE id = $1`,
		userID, string(taskJSON),
	)
}

// ReplaceTask は同じIDのタスクを置き換える。
// ユーザーが存在しない場合と、リスト内に該当IDのタスクがない場合はfalseを返す。
func (r *PostgresTaskRepo) ReplaceTask(ctx context.Context, userID string, task model.Task) (bool, error) {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return false, fmt.Errorf("failed to encode task: %w", err)
	}

	return r.exec(ctx, "replace task",
		`UPDATE users
		    SET tasks = (
		        SELECT COALESCE(jsonb_agg(
		                   CASE WHEN e.t->>'id' = $2::text THEN $3::jsonb ELSE e.t END
		                   ORDER BY e.ord), '[]'::jsonb)
		          FROM jsonb_array_elements(users.tasks) WITH ORDINALITY AS e(t, ord))
		  WHERE id = $1
		    AND tasks @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		userID, task.ID, string(taskJSON),
	)
}

// RemoveTask は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) RemoveTask(ctx context.Context, userID, taskID string) (bool, error) {
	return r.exec(ctx, "remove task",
		`UPDATE users
		    SET tasks = (
		        SELECT COALESCE(jsonb_agg(e.t ORDER BY e.ord), '[]'::jsonb)
		          FROM jsonb_array_elements(users.tasks) WITH ORDINALITY AS e(t, ord)
		         WHERE e.t->>'id' <> $2)
		  WHERE id = $1`,
		userID, taskID,
	)
}

// RemoveCompletedTasks は完了済みのタスクをすべて削除する。
func (r *PostgresTaskRepo) RemoveCompletedTasks(ctx context.Context, userID string) (bool, error) {
	return r.exec(ctx, "remove completed tasks",
		`UPDATE users
		    SET tasks = (
		        SELECT COALESCE(jsonb_agg(e.t ORDER BY e.ord), '[]'::jsonb)
		          FROM jsonb_array_elements(users.tasks) WITH ORDINALITY AS e(t, ord)
		         WHERE COALESCE((e.t->>'completed')::boolean, false) = false)
		  WHERE id = $1`,
		userID,
	)
}

// RemoveAllTasks はタスクリストを空にする。
func (r *PostgresTaskRepo) RemoveAllTasks(ctx context.Context, userID string) (bool, error) {
	return r.exec(ctx, "remove all tasks",
		`UPDATE users SET tasks = '[]'::jsonb WHERE id = $1`,
		userID,
	)
}

// exec は更新文を実行し、対象ユーザーが存在したかを返す。
func (r *PostgresTaskRepo) exec(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
