package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/files-manager/internal/domain/model"
)

// fakeSessions — хранилище сессий в памяти для тестов.
type fakeSessions struct {
	tokens map[string]string
	err    error
}

func (f *fakeSessions) LookupUserID(_ context.Context, token string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	userID, ok := f.tokens[token]
	return userID, ok, nil
}

func (f *fakeSessions) StoreToken(_ context.Context, token, userID string, _ time.Duration) error {
	f.tokens[token] = userID
	return nil
}

func (f *fakeSessions) Revoke(_ context.Context, token string) error {
	delete(f.tokens, token)
	return nil
}

func (f *fakeSessions) Ping(context.Context) error { return f.err }

func TestResolve(t *testing.T) {
	c := New(&fakeSessions{tokens: map[string]string{"good": "u1"}})
	ctx := context.Background()

	tests := []struct {
		token string
		want  Identity
	}{
		{"", Anonymous},
		{"unknown", Anonymous},
		{"good", Identity{UserID: "u1"}},
	}
	for _, tc := range tests {
		got, err := c.Resolve(ctx, tc.token)
		if err != nil {
			t.Errorf("Resolve(%q): неожиданная ошибка %v", tc.token, err)
		}
		if got != tc.want {
			t.Errorf("Resolve(%q) = %+v, ожидалось %+v", tc.token, got, tc.want)
		}
	}
}

func TestResolve_StoreFailure(t *testing.T) {
	storeErr := errors.New("redis down")
	c := New(&fakeSessions{err: storeErr})

	if _, err := c.Resolve(context.Background(), "tok"); !errors.Is(err, storeErr) {
		t.Errorf("ожидалась ошибка хранилища, получено %v", err)
	}
	// Пустой токен не обращается к хранилищу
	if _, err := c.Resolve(context.Background(), ""); err != nil {
		t.Errorf("пустой токен: неожиданная ошибка %v", err)
	}
}

func TestRequireAuthenticated(t *testing.T) {
	c := New(&fakeSessions{tokens: map[string]string{"good": "u1"}})
	ctx := context.Background()

	userID, err := c.RequireAuthenticated(ctx, "good")
	if err != nil || userID != "u1" {
		t.Errorf("RequireAuthenticated(good) = (%q, %v)", userID, err)
	}

	for _, token := range []string{"", "bad"} {
		if _, err := c.RequireAuthenticated(ctx, token); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("RequireAuthenticated(%q): ожидалась ErrUnauthorized, получено %v", token, err)
		}
	}
}

func TestCanReadCanMutate(t *testing.T) {
	private := model.NewFolder("owner", "dir", "", false)
	public := model.NewFolder("owner", "dir", "", true)
	owner := Identity{UserID: "owner"}
	other := Identity{UserID: "other"}

	tests := []struct {
		name       string
		id         Identity
		rec        *model.FileRecord
		read, edit bool
	}{
		{"владелец, приватная", owner, private, true, true},
		{"чужой, приватная", other, private, false, false},
		{"аноним, приватная", Anonymous, private, false, false},
		{"чужой, публичная", other, public, true, false},
		{"аноним, публичная", Anonymous, public, true, false},
		{"владелец, публичная", owner, public, true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanRead(tc.id, tc.rec); got != tc.read {
				t.Errorf("CanRead: ожидалось %v, получено %v", tc.read, got)
			}
			if got := CanMutate(tc.id, tc.rec); got != tc.edit {
				t.Errorf("CanMutate: ожидалось %v, получено %v", tc.edit, got)
			}
		})
	}
}
