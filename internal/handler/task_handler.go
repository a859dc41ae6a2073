package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/taskgun/internal/metrics"
	"github.com/hitoshi/taskgun/internal/middleware"
	"github.com/hitoshi/taskgun/internal/model"
)

// タスク操作インテント
const (
	intentCreateTask           = "create-task"
	intentToggleTaskCompletion = "toggle-task-completion"
	intentEditTask             = "edit-task"
	intentSaveTask             = "save-task"
	intentDeleteTask           = "delete-task"
	intentClearCompletedTasks  = "clear-completed-tasks"
	intentDeleteAllTasks       = "delete-all-tasks"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	CreateTask(ctx context.Context, userID, description string) (*model.Task, error)
	ListTasks(ctx context.Context, userID string) ([]model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) (*model.Task, error)
	ClearCompletedTasks(ctx context.Context, userID string) ([]model.Task, error)
	DeleteAllTasks(ctx context.Context, userID string) ([]model.Task, error)
}

// tasksResponse はタスク一覧のレスポンス。
type tasksResponse struct {
	Tasks []model.Task `json:"tasks"`
}

// TaskHandler はタスクリストのHTTPハンドラー。
type TaskHandler struct {
	tasks  TaskServiceInterface
	gate   AuthGate
	events EventRecorder
	now    func() time.Time
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(tasks TaskServiceInterface, gate AuthGate, events EventRecorder) *TaskHandler {
	if events == nil {
		events = metrics.NopCollector{}
	}
	return &TaskHandler{
		tasks:  tasks,
		gate:   gate,
		events: events,
		now:    time.Now,
	}
}

// ListTasks はサインイン中のユーザーのタスク一覧を返す。
// ?view=active|completed で絞り込む。省略時と未知の値はすべてを返す。
// GET /todos
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.gate.RedirectToSignIn(w, r)
		return
	}

	tasks, err := h.tasks.ListTasks(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err, handleServiceError)
		return
	}

	view := model.ParseTaskView(r.URL.Query().Get("view"))
	writeJSON(w, http.StatusOK, tasksResponse{Tasks: view.Filter(tasks)})
}

// HandleIntent はフォームのintentに応じてタスクを操作する。
// 未知のintentや入力エラーは400の{formError, fieldErrors}を返す。
// POST /todos
func (h *TaskHandler) HandleIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.gate.RedirectToSignIn(w, r)
		return
	}

	ctx := r.Context()
	intent := r.PostFormValue("intent")
	id := r.PostFormValue("id")

	switch intent {
	case intentCreateTask:
		_, err = h.tasks.CreateTask(ctx, userID, r.PostFormValue("description"))

	case intentToggleTaskCompletion:
		completed := r.PostFormValue("completed") == "true"
		patch := model.TaskPatch{Completed: &completed}
		if completed {
			now := h.now()
			patch.CompletedAt = &now
		}
		_, err = h.tasks.UpdateTask(ctx, userID, id, patch)

	case intentEditTask:
		editing := false
		_, err = h.tasks.UpdateTask(ctx, userID, id, model.TaskPatch{Editing: &editing})

	case intentSaveTask:
		description := r.PostFormValue("description")
		editing := false
		_, err = h.tasks.UpdateTask(ctx, userID, id, model.TaskPatch{
			Description: &description,
			Editing:     &editing,
		})

	case intentDeleteTask:
		_, err = h.tasks.DeleteTask(ctx, userID, id)

	case intentClearCompletedTasks:
		_, err = h.tasks.ClearCompletedTasks(ctx, userID)

	case intentDeleteAllTasks:
		_, err = h.tasks.DeleteAllTasks(ctx, userID)

	default:
		handleFormError(w, model.ErrUnknownIntent)
		return
	}

	if err != nil {
		h.handleError(w, r, err, handleFormError)
		return
	}

	h.events.RecordTaskIntent(intent)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleError はセッションのユーザーが存在しない場合にサインインへ誘導し、
// それ以外はwriteErrで書き込む。
func (h *TaskHandler) handleError(w http.ResponseWriter, r *http.Request, err error, writeErr func(http.ResponseWriter, error)) {
	if errors.Is(err, model.ErrUserNotFound) {
		h.gate.RedirectToSignIn(w, r)
		return
	}
	writeErr(w, err)
}
