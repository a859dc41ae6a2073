// Package task はユーザーごとのタスクリスト操作を提供する。
// すべての操作はユーザーIDで範囲を限定し、他のユーザーのタスクには触れない。
package task

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/taskgun/internal/model"
	"github.com/hitoshi/taskgun/internal/repository"
	"github.com/hitoshi/taskgun/internal/security"
	"github.com/hitoshi/taskgun/internal/validation"
)

// Service はタスク操作のサービス層。
type Service struct {
	users     repository.UserRepository
	tasks     repository.TaskRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// nowがnilの場合はtime.Nowを使う。
func NewService(
	users repository.UserRepository,
	tasks repository.TaskRepository,
	sanitizer security.TextSanitizer,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:     users,
		tasks:     tasks,
		sanitizer: sanitizer,
		now:       now,
	}
}

// CreateTask はタスクを作成してリスト末尾に追加する。
// 本文はサニタイズ後に空でないことを検証する。
func (s *Service) CreateTask(ctx context.Context, userID, description string) (*model.Task, error) {
	description = s.sanitizer.Sanitize(description)
	if errs := validation.ValidateTaskDescription(description); errs != nil {
		return nil, errs
	}

	id, err := generateTaskID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate task id: %w", err)
	}

	t := model.Task{
		ID:          id,
		Description: description,
		Completed:   false,
		CreatedAt:   s.now(),
	}

	found, err := s.tasks.AppendTask(ctx, userID, t)
	if err != nil {
		return nil, fmt.Errorf("failed to append task: %w", err)
	}
	if !found {
		return nil, model.ErrUserNotFound
	}

	slog.Debug("task created",
		slog.String("user_id", userID),
		slog.String("task_id", id),
	)
	return &t, nil
}

// ListTasks はユーザーのタスクを保存順で返す。
func (s *Service) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Tasks, nil
}

// UpdateTask はパッチを適用したタスクを保存して返す。
// 読み取りと書き込みは別操作のため、同一ユーザーへの同時更新は後勝ちになる。
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if patch.Description != nil {
		d := s.sanitizer.Sanitize(*patch.Description)
		if errs := validation.ValidateTaskDescription(d); errs != nil {
			return nil, errs
		}
		patch.Description = &d
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	current, ok := findTask(u.Tasks, taskID)
	if !ok {
		return nil, model.ErrTaskNotFound
	}

	updated := patch.Apply(current)

	found, err := s.tasks.ReplaceTask(ctx, userID, updated)
	if err != nil {
		return nil, fmt.Errorf("failed to replace task: %w", err)
	}
	// 読み取り後に削除された場合
	if !found {
		return nil, model.ErrTaskNotFound
	}
	return &updated, nil
}

// DeleteTask は指定タスクを削除し、削除したタスクを返す。
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	target, ok := findTask(u.Tasks, taskID)
	if !ok {
		return nil, model.ErrTaskNotFound
	}

	found, err := s.tasks.RemoveTask(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove task: %w", err)
	}
	if !found {
		return nil, model.ErrUserNotFound
	}
	return &target, nil
}

// ClearCompletedTasks は完了済みタスクを削除し、残ったタスクを順序を保って返す。
func (s *Service) ClearCompletedTasks(ctx context.Context, userID string) ([]model.Task, error) {
	found, err := s.tasks.RemoveCompletedTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove completed tasks: %w", err)
	}
	if !found {
		return nil, model.ErrUserNotFound
	}
	return s.ListTasks(ctx, userID)
}

// DeleteAllTasks はユーザーのタスクをすべて削除する。戻り値は常に空のリスト。
func (s *Service) DeleteAllTasks(ctx context.Context, userID string) ([]model.Task, error) {
	found, err := s.tasks.RemoveAllTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove all tasks: %w", err)
	}
	if !found {
		return nil, model.ErrUserNotFound
	}
	return []model.Task{}, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.ErrUserNotFound
	}
	return u, nil
}

func findTask(tasks []model.Task, id string) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// generateTaskID は32文字の16進数IDを生成する。
func generateTaskID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
