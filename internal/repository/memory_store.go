package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/taskgun/internal/model"
)

// MemoryStore はプロセス内メモリにユーザー・タスク・セッションを保持するストア。
// UserRepository、TaskRepository、SessionRepositoryを同時に満たす。
// ローカル開発（STORAGE_DRIVER=memory）とテストで使う。インスタンスごとに状態を持つ。
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*model.User
	order    []string
	sessions map[string]model.Session

	now func() time.Time
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*model.User),
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// SetClock はセッション期限判定に使う時刻関数を差し替える。テスト用。
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// --- UserRepository ---

// FindByID は指定IDのユーザーのコピーを返す。見つからない場合はnilを返す。
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

// FindByEmail は作成順で最初に一致したユーザーを返す。
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findFirst(func(u *model.User) bool { return u.Email == email }), nil
}

// FindByResetToken はリセットトークンを保持するユーザーを返す。
func (s *MemoryStore) FindByResetToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	return s.findFirst(func(u *model.User) bool { return u.ForgotPasswordToken == token }), nil
}

func (s *MemoryStore) findFirst(match func(u *model.User) bool) *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if u := s.users[id]; match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

// Create はユーザーを保存する。
func (s *MemoryStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("failed to insert user: duplicate id %s", user.ID)
	}
	s.users[user.ID] = cloneUser(user)
	s.order = append(s.order, user.ID)
	return nil
}

// DeleteByID はユーザーと、そのユーザーのセッションを削除する。
func (s *MemoryStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	delete(s.users, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.deleteSessionsLocked(id)
	return nil
}

// SetResetToken はリセットトークンを上書き保存する。
func (s *MemoryStore) SetResetToken(ctx context.Context, userID, token string, expireAt int64) error {
	return s.mutateUser(userID, func(u *model.User) {
		u.ForgotPasswordToken = token
		u.ForgotPasswordTokenExpireAt = expireAt
	})
}

// UpdatePassword は資格情報を置き換え、リセットトークンをクリアする。
func (s *MemoryStore) UpdatePassword(ctx context.Context, userID string, cred model.Credential) error {
	return s.mutateUser(userID, func(u *model.User) {
		u.Password = cred
		u.ForgotPasswordToken = ""
		u.ForgotPasswordTokenExpireAt = 0
	})
}

func (s *MemoryStore) mutateUser(userID string, fn func(u *model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 存在しないユーザーへのUPDATEはPostgreSQLと同様にエラーにしない
	if u, ok := s.users[userID]; ok {
		fn(u)
	}
	return nil
}

// --- TaskRepository ---

// AppendTask はタスクをリスト末尾に追加する。
func (s *MemoryStore) AppendTask(ctx context.Context, userID string, task model.Task) (bool, error) {
	return s.mutateTasks(userID, func(tasks []model.Task) []model.Task {
		return append(tasks, cloneTask(task))
	}), nil
}

// ReplaceTask は同じIDのタスクを置き換える。該当タスクがない場合はfalseを返す。
func (s *MemoryStore) ReplaceTask(ctx context.Context, userID string, task model.Task) (bool, error) {
	replaced := false
	s.mutateTasks(userID, func(tasks []model.Task) []model.Task {
		for i := range tasks {
			if tasks[i].ID == task.ID {
				tasks[i] = cloneTask(task)
				replaced = true
			}
		}
		return tasks
	})
	return replaced, nil
}

// RemoveTask は指定IDのタスクを削除する。
func (s *MemoryStore) RemoveTask(ctx context.Context, userID, taskID string) (bool, error) {
	return s.mutateTasks(userID, func(tasks []model.Task) []model.Task {
		return filterTasks(tasks, func(t model.Task) bool { return t.ID != taskID })
	}), nil
}

// RemoveCompletedTasks は完了済みのタスクをすべて削除する。
func (s *MemoryStore) RemoveCompletedTasks(ctx context.Context, userID string) (bool, error) {
	return s.mutateTasks(userID, func(tasks []model.Task) []model.Task {
		return filterTasks(tasks, func(t model.Task) bool { return !t.Completed })
	}), nil
}

// RemoveAllTasks はタスクリストを空にする。
func (s *MemoryStore) RemoveAllTasks(ctx context.Context, userID string) (bool, error) {
	return s.mutateTasks(userID, func([]model.Task) []model.Task {
		return []model.Task{}
	}), nil
}

func (s *MemoryStore) mutateTasks(userID string, fn func(tasks []model.Task) []model.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false
	}
	u.Tasks = fn(u.Tasks)
	return true
}

// --- SessionRepository ---

// SessionStore はSessionRepositoryとしてのビューを返す。
// MemoryStoreのFindByID/DeleteByIDはUserRepository側のメソッドのため、
// セッション操作はこのビュー経由で行う。
func (s *MemoryStore) SessionStore() SessionRepository {
	return memorySessions{s}
}

type memorySessions struct {
	s *MemoryStore
}

func (m memorySessions) Create(ctx context.Context, session *model.Session) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.sessions[session.ID] = *session
	return nil
}

func (m memorySessions) FindByID(ctx context.Context, id string) (*model.Session, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	session, ok := m.s.sessions[id]
	if !ok || !session.ExpiresAt.After(m.s.now()) {
		return nil, nil
	}
	return &session, nil
}

func (m memorySessions) DeleteByID(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	delete(m.s.sessions, id)
	return nil
}

func (m memorySessions) DeleteByUserID(ctx context.Context, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.deleteSessionsLocked(userID)
	return nil
}

func (s *MemoryStore) deleteSessionsLocked(userID string) {
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
		}
	}
}

// --- helpers ---

func filterTasks(tasks []model.Task, keep func(t model.Task) bool) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func cloneTask(t model.Task) model.Task {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}
	return t
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Tasks = make([]model.Task, len(u.Tasks))
	for i, t := range u.Tasks {
		c.Tasks[i] = cloneTask(t)
	}
	return &c
}

// compile-time interface check
var (
	_ UserRepository    = (*MemoryStore)(nil)
	_ TaskRepository    = (*MemoryStore)(nil)
	_ SessionRepository = memorySessions{}
)
