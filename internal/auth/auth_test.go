package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func testService(t *testing.T) *Service {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewService(repo, time.Hour)
}

func TestSetupAndLogin(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "secret"); !errors.Is(err, ErrPasswordNotSet) {
		t.Fatalf("login before setup: got %v", err)
	}

	if err := svc.Setup(ctx, "secret"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := svc.Setup(ctx, "other"); !errors.Is(err, ErrPasswordAlreadySet) {
		t.Fatalf("second setup: got %v", err)
	}

	if _, err := svc.Login(ctx, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong password: got %v", err)
	}

	token, err := svc.Login(ctx, "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token.Value == "" || !token.ExpiresAt.After(time.Now()) {
		t.Fatalf("token: %+v", token)
	}

	if err := svc.Check(ctx, token.Value); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func TestSetupRejectsWeakPassword(t *testing.T) {
	svc := testService(t)
	for _, pw := range []string{"", "   ", "abc"} {
		if err := svc.Setup(context.Background(), pw); !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("Setup(%q): got %v", pw, err)
		}
	}
}

func TestCheckRejectsInvalidTokens(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if err := svc.Check(ctx, ""); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("empty token: got %v", err)
	}
	if err := svc.Check(ctx, "not-a-token"); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("unknown token: got %v", err)
	}
}

func TestCheckRejectsExpiredToken(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	if err := svc.Setup(ctx, "secret"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// Issue a token in the past, then check it in the present.
	past := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return past }
	token, err := svc.Login(ctx, "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.now = time.Now
	if err := svc.Check(ctx, token.Value); !errors.Is(err, core.ErrAuthRequired) {
		t.Fatalf("expired token: got %v", err)
	}
}
