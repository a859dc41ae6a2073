package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/taskgun/internal/model"
)

func newUser(id, email string) *model.User {
	return &model.User{
		ID:        id,
		CreatedAt: time.Now(),
		Name:      "name-" + id,
		Email:     email,
		Password:  model.Credential{Salt: "s", Hash: "h"},
		Tasks:     []model.Task{},
	}
}

func TestMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, newUser("u1", "a@x.com")))

	got, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@x.com", got.Email)

	byEmail, err := s.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u1", byEmail.ID)

	// 大文字小文字を区別する
	upper, err := s.FindByEmail(ctx, "A@x.com")
	require.NoError(t, err)
	assert.Nil(t, upper)

	missing, err := s.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newUser("u1", "a@x.com")))

	_, err := s.AppendTask(ctx, "u1", model.Task{ID: "t1", Description: "a"})
	require.NoError(t, err)

	got, _ := s.FindByID(ctx, "u1")
	got.Tasks[0].Description = "mutated"
	got.Name = "mutated"

	again, _ := s.FindByID(ctx, "u1")
	assert.Equal(t, "a", again.Tasks[0].Description)
	assert.Equal(t, "name-u1", again.Name)
}

func TestMemoryStore_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newUser("u1", "a@x.com")))
	assert.Error(t, s.Create(ctx, newUser("u1", "b@x.com")))
}

func TestMemoryStore_DeleteByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sessions := s.SessionStore()
	require.NoError(t, s.Create(ctx, newUser("u1", "a@x.com")))
	require.NoError(t, sessions.Create(ctx, &model.Session{
		ID: "sess-1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.DeleteByID(ctx, "u1"))

	got, _ := s.FindByID(ctx, "u1")
	assert.Nil(t, got)
	sess, _ := sessions.FindByID(ctx, "sess-1")
	assert.Nil(t, sess, "sessions should be removed with the user")

	assert.Error(t, s.DeleteByID(ctx, "u1"))
}

func TestMemoryStore_ResetToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newUser("u1", "a@x.com")))

	require.NoError(t, s.SetResetToken(ctx, "u1", "tok", 1234))
	u, _ := s.FindByResetToken(ctx, "tok")
	require.NotNil(t, u)
	assert.Equal(t, int64(1234), u.ForgotPasswordTokenExpireAt)

	none, _ := s.FindByResetToken(ctx, "")
	assert.Nil(t, none)

	require.NoError(t, s.UpdatePassword(ctx, "u1", model.Credential{Salt: "s2", Hash: "h2"}))
	u, _ = s.FindByID(ctx, "u1")
	assert.Equal(t, "s2", u.Password.Salt)
	assert.Empty(t, u.ForgotPasswordToken)
	assert.Zero(t, u.ForgotPasswordTokenExpireAt)
}

func TestMemoryStore_TaskMutations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newUser("u1", "a@x.com")))

	for _, task := range []model.Task{
		{ID: "t1", Description: "one", Completed: true},
		{ID: "t2", Description: "two"},
		{ID: "t3", Description: "three", Completed: true},
		{ID: "t4", Description: "four"},
	} {
		ok, err := s.AppendTask(ctx, "u1", task)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := s.ReplaceTask(ctx, "u1", model.Task{ID: "t2", Description: "TWO"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RemoveTask(ctx, "u1", "t4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ReplaceTask(ctx, "u1", model.Task{ID: "t4", Description: "FOUR"})
	require.NoError(t, err)
	assert.False(t, ok, "removed task should not be replaced")

	ok, err = s.RemoveCompletedTasks(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	u, _ := s.FindByID(ctx, "u1")
	require.Len(t, u.Tasks, 1)
	assert.Equal(t, "TWO", u.Tasks[0].Description)

	ok, err = s.RemoveAllTasks(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	u, _ = s.FindByID(ctx, "u1")
	assert.Empty(t, u.Tasks)
}

func TestMemoryStore_TaskMutations_UnknownUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.AppendTask(ctx, "ghost", model.Task{ID: "t1"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = s.RemoveAllTasks(ctx, "ghost")
	assert.False(t, ok)
}

func TestMemoryStore_SessionExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	sessions := s.SessionStore()

	require.NoError(t, sessions.Create(ctx, &model.Session{
		ID: "sess-1", UserID: "u1", ExpiresAt: now.Add(time.Minute),
	}))

	got, err := sessions.FindByID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	now = now.Add(2 * time.Minute)
	got, err = sessions.FindByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, sessions.DeleteByID(ctx, "sess-1"))
	require.NoError(t, sessions.DeleteByUserID(ctx, "u1"))
}
