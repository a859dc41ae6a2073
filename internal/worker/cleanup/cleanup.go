// Package cleanup は期限切れのセッションを削除するジョブを提供する。
// cronから `taskgun cleanup` として実行する想定。
//
// 期限切れのパスワードリセットトークンは対象外。期限後の利用はTokenExpiredとして
// 判定する必要があり、トークンは次のリセット要求かパスワード更新で上書き・クリアされる。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sqlx.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Result は1回の実行で処理した件数。
type Result struct {
	SessionsDeleted int64
}

// CleanupJob は期限切れデータの削除ジョブ。冪等な削除処理を保証する。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
	now    func() time.Time

	// Retention は期限切れセッションを残しておく猶予期間（デフォルト: 0）。
	Retention time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Run は期限切れからRetention以上経過したセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	now := j.now()
	res := &Result{}

	sessions, err := j.exec(ctx, "sessions",
		`DELETE FROM sessions WHERE expires_at < $1`,
		now.Add(-j.Retention),
	)
	if err != nil {
		return nil, err
	}
	res.SessionsDeleted = sessions

	j.logger.Info("cleanup job completed",
		slog.Int64("sessions_deleted", res.SessionsDeleted),
		slog.String("retention", j.Retention.String()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, nil
}

func (j *CleanupJob) exec(ctx context.Context, target, query string, args ...any) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("cleanup query failed",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to clean up %s: %w", target, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", target, err)
	}
	return n, nil
}
