package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zest/productapi/internal/auth"
	"github.com/zest/productapi/internal/domain/user"
	"github.com/zest/productapi/internal/repo/memory"
)

func newTokenService(t *testing.T) (*auth.TokenService, auth.Principal) {
	t.Helper()

	users := memory.NewUsersRepo()
	u, err := users.Create(context.Background(), user.NewUser{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "irrelevant",
		Roles:        []string{user.RoleUser},
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	m := auth.NewManager("test-secret", 15*time.Minute, 24*time.Hour)
	return auth.NewTokenService(m, users), auth.PrincipalFromUser(u)
}

func TestTokenService_IssuePair(t *testing.T) {
	svc, p := newTokenService(t)

	pair, err := svc.IssuePair(context.Background(), p)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if pair.TokenType != auth.TokenTypeBearer {
		t.Fatalf("got token type %q", pair.TokenType)
	}
	if pair.ExpiresIn != (15 * time.Minute).Milliseconds() {
		t.Fatalf("got expiresIn %d", pair.ExpiresIn)
	}

	got, err := svc.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken error: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("got subject %q", got.Username)
	}
}

func TestTokenService_RotateIsSingleUse(t *testing.T) {
	svc, p := newTokenService(t)
	ctx := context.Background()

	first, err := svc.IssuePair(ctx, p)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	second, err := svc.Rotate(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatalf("rotation must issue a new refresh token")
	}

	if _, err := svc.Rotate(ctx, first.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("reusing old refresh token: got %v, want ErrInvalidToken", err)
	}

	if _, err := svc.Rotate(ctx, second.RefreshToken); err != nil {
		t.Fatalf("rotating the new token should succeed: %v", err)
	}
}

func TestTokenService_NewSessionInvalidatesPrevious(t *testing.T) {
	svc, p := newTokenService(t)
	ctx := context.Background()

	older, err := svc.IssuePair(ctx, p)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}
	if _, err := svc.IssuePair(ctx, p); err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if _, err := svc.Rotate(ctx, older.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_RotateRejectsGarbage(t *testing.T) {
	svc, _ := newTokenService(t)

	if _, err := svc.Rotate(context.Background(), "not-a-jwt"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_RotateRejectsAccessToken(t *testing.T) {
	svc, p := newTokenService(t)

	pair, err := svc.IssuePair(context.Background(), p)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if _, err := svc.Rotate(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestTokenService_ConcurrentRotateOnlyOneWins(t *testing.T) {
	svc, p := newTokenService(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, p)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Rotate(ctx, pair.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("got %d successful rotations, want exactly 1", wins)
	}
}

func TestTokenService_VerifyAccessTokenWrapsUnauthenticated(t *testing.T) {
	svc, _ := newTokenService(t)

	if _, err := svc.VerifyAccessToken("bogus"); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("got %v, want ErrUnauthenticated", err)
	}
}
