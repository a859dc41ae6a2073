package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type execCall struct {
	query string
	args  []any
}

// mockExecutor は呼び出されたSQLを記録し、順番に結果を返す。
type mockExecutor struct {
	calls   []execCall
	results []sql.Result
	errAt   int // このインデックスの呼び出しでerrを返す（-1で無効）
	err     error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	i := len(m.calls)
	m.calls = append(m.calls, execCall{query: query, args: args})
	if i == m.errAt {
		return nil, m.err
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	return &fakeResult{}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestJob(mock *mockExecutor, buf *bytes.Buffer, now time.Time) *CleanupJob {
	job := NewCleanupJob(mock, newTestLogger(buf))
	job.now = func() time.Time { return now }
	return job
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 3}},
		errAt:   -1,
	}
	var buf bytes.Buffer
	job := newTestJob(mock, &buf, now)

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if res.SessionsDeleted != 3 {
		t.Errorf("SessionsDeleted = %d, want 3", res.SessionsDeleted)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("ExecContext calls = %d, want 1", len(mock.calls))
	}
	if !strings.Contains(mock.calls[0].query, "DELETE FROM sessions") {
		t.Errorf("query = %s", mock.calls[0].query)
	}
	if got, ok := mock.calls[0].args[0].(time.Time); !ok || !got.Equal(now) {
		t.Errorf("session cutoff = %v, want %v", mock.calls[0].args[0], now)
	}
}

// TestCleanupJob_Run_KeepsResetTokens は期限切れのリセットトークンに触れないことを検証する。
// トークンが残っていればUpdatePasswordはTokenExpiredを返せる。
func TestCleanupJob_Run_KeepsResetTokens(t *testing.T) {
	mock := &mockExecutor{errAt: -1}
	var buf bytes.Buffer
	job := newTestJob(mock, &buf, time.Now())

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	for _, c := range mock.calls {
		if strings.Contains(c.query, "users") || strings.Contains(c.query, "forgot_password_token") {
			t.Errorf("cleanup should not modify reset tokens: %s", c.query)
		}
	}
}

func TestCleanupJob_Run_AppliesRetention(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock := &mockExecutor{errAt: -1}
	var buf bytes.Buffer
	job := newTestJob(mock, &buf, now)
	job.Retention = 24 * time.Hour

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	want := now.Add(-24 * time.Hour)
	if got := mock.calls[0].args[0].(time.Time); !got.Equal(want) {
		t.Errorf("session cutoff = %v, want %v", got, want)
	}
}

func TestCleanupJob_Run_LogsCounts(t *testing.T) {
	mock := &mockExecutor{
		results: []sql.Result{&fakeResult{rowsAffected: 42}},
		errAt:   -1,
	}
	var buf bytes.Buffer
	job := newTestJob(mock, &buf, time.Now())

	_, _ = job.Run(context.Background())

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["sessions_deleted"] == float64(42) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("completion log not found. output: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	mock := &mockExecutor{errAt: 0, err: sql.ErrConnDone}
	var buf bytes.Buffer
	job := newTestJob(mock, &buf, time.Now())

	res, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("error should wrap sql.ErrConnDone: %v", err)
	}
	if res != nil {
		t.Error("result should be nil on failure")
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("expected an ERROR log line, got %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	mock := &mockExecutor{errAt: -1}
	var buf bytes.Buffer
	job := newTestJob(mock, &buf, time.Now())

	for i := 0; i < 2; i++ {
		res, err := job.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d returned error: %v", i, err)
		}
		if res.SessionsDeleted != 0 {
			t.Errorf("run %d result = %+v, want zero", i, *res)
		}
	}
}
