package authz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/taskgun/internal/model"
	"github.com/hitoshi/taskgun/internal/repository"
	"github.com/hitoshi/taskgun/internal/session"
)

// --- モック ---

type mockUserFinder struct {
	getUserFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserFinder) GetUser(ctx context.Context, id string) (*model.User, error) {
	return m.getUserFn(ctx, id)
}

func newManager() *session.Manager {
	return session.NewManager(repository.NewMemoryStore().SessionStore(), session.Config{
		Secret: []byte("test-secret"),
	})
}

// signedInRequest はuserIDでサインイン済みのリクエストを生成する。
func signedInRequest(t *testing.T, m *session.Manager, userID string) *http.Request {
	t.Helper()
	h := m.GetSession(httptest.NewRequest(http.MethodGet, "/", nil))
	h.SetUserID(userID)
	c, err := m.Commit(context.Background(), h)
	if err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	req.AddCookie(c)
	return req
}

func TestGate_GetUserID(t *testing.T) {
	m := newManager()
	gate := NewGate(m, &mockUserFinder{})

	if _, ok := gate.GetUserID(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Error("anonymous request should have no user ID")
	}

	userID, ok := gate.GetUserID(signedInRequest(t, m, "user-1"))
	if !ok || userID != "user-1" {
		t.Errorf("GetUserID = %q, %v; want user-1, true", userID, ok)
	}
}

func TestGate_RequireUserID(t *testing.T) {
	m := newManager()
	gate := NewGate(m, &mockUserFinder{})

	_, err := gate.RequireUserID(httptest.NewRequest(http.MethodGet, "/", nil))
	if !errors.Is(err, model.ErrSignInRequired) {
		t.Errorf("err = %v, want ErrSignInRequired", err)
	}

	userID, err := gate.RequireUserID(signedInRequest(t, m, "user-1"))
	if err != nil || userID != "user-1" {
		t.Errorf("RequireUserID = %q, %v", userID, err)
	}
}

func TestGate_RequireUser(t *testing.T) {
	m := newManager()

	t.Run("匿名はnilを返す", func(t *testing.T) {
		gate := NewGate(m, &mockUserFinder{getUserFn: func(ctx context.Context, id string) (*model.User, error) {
			t.Error("GetUser should not be called for anonymous requests")
			return nil, nil
		}})
		u, err := gate.RequireUser(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
		if u != nil || err != nil {
			t.Errorf("RequireUser = %v, %v; want nil, nil", u, err)
		}
	})

	t.Run("存在するユーザー", func(t *testing.T) {
		gate := NewGate(m, &mockUserFinder{getUserFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Name: "Ann", Email: "a@x.com", Password: model.Credential{Hash: "h"}}, nil
		}})
		u, err := gate.RequireUser(context.Background(), signedInRequest(t, m, "user-1"))
		if err != nil {
			t.Fatalf("RequireUser returned error: %v", err)
		}
		if u.ID != "user-1" || u.Name != "Ann" {
			t.Errorf("RequireUser = %+v", u)
		}
	})

	t.Run("削除済みユーザーはサインイン要求", func(t *testing.T) {
		gate := NewGate(m, &mockUserFinder{getUserFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, model.ErrUserNotFound
		}})
		_, err := gate.RequireUser(context.Background(), signedInRequest(t, m, "user-1"))
		if !errors.Is(err, model.ErrSignInRequired) {
			t.Errorf("err = %v, want ErrSignInRequired", err)
		}
	})

	t.Run("ストア障害はそのまま返す", func(t *testing.T) {
		storeErr := errors.New("db down")
		gate := NewGate(m, &mockUserFinder{getUserFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, storeErr
		}})
		_, err := gate.RequireUser(context.Background(), signedInRequest(t, m, "user-1"))
		if !errors.Is(err, storeErr) {
			t.Errorf("err = %v, want wrapped store error", err)
		}
	})
}

func TestGate_RedirectToSignIn(t *testing.T) {
	gate := NewGate(newManager(), &mockUserFinder{})

	rec := httptest.NewRecorder()
	gate.RedirectToSignIn(rec, httptest.NewRequest(http.MethodGet, "/todos", nil))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != SignInPath {
		t.Errorf("Location = %q, want %q", loc, SignInPath)
	}
	setCookie := rec.Header().Get("Set-Cookie")
	if !strings.HasPrefix(setCookie, session.DefaultCookieName+"=;") || !strings.Contains(setCookie, "Max-Age=0") {
		t.Errorf("Set-Cookie = %q, want cleared session cookie", setCookie)
	}
}
