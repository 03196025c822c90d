package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sicilica/yachu-server/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "yachu.db"), WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "yachu.db")

	s, err := Open(ctx, path, WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Register(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, path, WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("login after reopen: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("id = %s, want %s", got.ID, a.ID)
	}
}

func TestRegisterLogin(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a, err := s.Register(ctx, "alice", "5e88")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := s.Register(ctx, "alice", "other"); !errors.Is(err, storage.ErrDuplicateName) {
		t.Fatalf("duplicate register err = %v", err)
	}

	got, err := s.Login(ctx, "alice", "5e88")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got != a {
		t.Fatalf("login = %+v, want %+v", got, a)
	}

	if _, err := s.Login(ctx, "alice", "nope"); !errors.Is(err, storage.ErrInvalidPassword) {
		t.Fatalf("bad password err = %v", err)
	}
	if _, err := s.Login(ctx, "nobody", "5e88"); !errors.Is(err, storage.ErrInvalidAccount) {
		t.Fatalf("unknown name err = %v", err)
	}
}

func TestChangeName(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a, _ := s.Register(ctx, "alice", "pw")
	if _, err := s.Register(ctx, "bob", "pw"); err != nil {
		t.Fatal(err)
	}

	if err := s.ChangeName(ctx, a.ID, "bob"); !errors.Is(err, storage.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if err := s.ChangeName(ctx, a.ID, "carol"); err != nil {
		t.Fatalf("change name: %v", err)
	}
	if _, err := s.Login(ctx, "carol", "pw"); err != nil {
		t.Fatalf("login as carol: %v", err)
	}
	if err := s.ChangeName(ctx, uuid.New(), "dave"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserData(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a, _ := s.Register(ctx, "alice", "pw")

	d, err := s.UserData(ctx, a.ID)
	if err != nil {
		t.Fatalf("user data: %v", err)
	}
	if d != (storage.UserData{}) {
		t.Fatalf("fresh user data = %+v", d)
	}

	want := storage.UserData{Money: 200, PlayCount: 3, WinCount: 2, LoseCount: 1}
	if err := s.SetUserData(ctx, a.ID, want); err != nil {
		t.Fatalf("set user data: %v", err)
	}
	if d, _ := s.UserData(ctx, a.ID); d != want {
		t.Fatalf("user data = %+v, want %+v", d, want)
	}

	if _, err := s.UserData(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.SetUserData(ctx, uuid.New(), want); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("set on unknown account err = %v, want ErrNotFound", err)
	}
}
