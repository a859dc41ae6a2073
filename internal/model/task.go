package model

import "time"

// Task はユーザーのタスクリストに埋め込まれるタスク。
// IDは所有ユーザーのリスト内でのみ一意。
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	// Editing はUI用の一時フラグ。
	Editing bool `json:"editing,omitempty"`
}

// TaskPatch はタスク更新時の部分フィールド。nilのフィールドは変更しない。
// ただしCompletedAtはCompletedの値に従って正規化される（Apply参照）。
type TaskPatch struct {
	Description *string
	Completed   *bool
	CompletedAt *time.Time
	Editing     *bool
}

// Apply はパッチをタスクにマージした結果を返す。
// CompletedAtはパッチのCompletedがtrueの場合のみパッチの値に設定され、
// それ以外（false・未指定）の場合は常にクリアされる。
func (p TaskPatch) Apply(t Task) Task {
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Editing != nil {
		t.Editing = *p.Editing
	}

	if p.Completed != nil && *p.Completed {
		t.CompletedAt = p.CompletedAt
	} else {
		t.CompletedAt = nil
	}

	return t
}

// TaskView はタスク一覧の表示フィルタ。
type TaskView string

const (
	TaskViewAll       TaskView = "all"
	TaskViewActive    TaskView = "active"
	TaskViewCompleted TaskView = "completed"
)

// ParseTaskView は文字列をTaskViewに変換する。空や未知の値はTaskViewAllとして扱う。
func ParseTaskView(s string) TaskView {
	switch TaskView(s) {
	case TaskViewActive, TaskViewCompleted:
		return TaskView(s)
	default:
		return TaskViewAll
	}
}

// Filter は表示対象のタスクを元の順序のまま返す。結果は常に非nil。
func (v TaskView) Filter(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		switch {
		case v == TaskViewActive && t.Completed:
			continue
		case v == TaskViewCompleted && !t.Completed:
			continue
		}
		out = append(out, t)
	}
	return out
}

// ThemeMode はUIのテーマ設定。
type ThemeMode string

const (
	ThemeSystem ThemeMode = "system"
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
)

// ParseThemeMode は文字列をThemeModeに変換する。未知の値はThemeSystemとして扱う。
func ParseThemeMode(s string) (ThemeMode, bool) {
	switch ThemeMode(s) {
	case ThemeLight, ThemeDark, ThemeSystem:
		return ThemeMode(s), true
	default:
		return ThemeSystem, false
	}
}
