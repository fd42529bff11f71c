package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"gymgate/internal/db"
	"gymgate/internal/domain"
	"gymgate/internal/identity"
	"gymgate/internal/migrate"
	"gymgate/internal/repo"
)

func newResolver(t *testing.T) (identity.Resolver, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	return identity.Resolver{Repo: r, Secret: "test-secret"}, r
}

func addPerson(t *testing.T, r repo.Repo, name string, code int64) domain.Person {
	t.Helper()
	p := domain.Person{
		ID:        uuid.New().String(),
		Code:      code,
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.InsertPerson(context.Background(), p); err != nil {
		t.Fatalf("insert person: %v", err)
	}
	return p
}

func TestResolveBadgeCode(t *testing.T) {
	ident, r := newResolver(t)
	ana := addPerson(t, r, "Ana", 1042)

	got, err := ident.Resolve(context.Background(), "1042")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != ana.ID {
		t.Fatalf("resolved wrong person: %s", got.ID)
	}
	// Whitespace around the scanned code is tolerated.
	if _, err := ident.Resolve(context.Background(), " 1042 "); err != nil {
		t.Fatalf("resolve trimmed: %v", err)
	}
}

func TestResolveUnknownCode(t *testing.T) {
	ident, _ := newResolver(t)
	_, err := ident.Resolve(context.Background(), "9999")
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveEmptyCredential(t *testing.T) {
	ident, _ := newResolver(t)
	if _, err := ident.Resolve(context.Background(), "   "); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	ident, r := newResolver(t)
	ana := addPerson(t, r, "Ana", 1042)

	token, err := ident.IssueToken(ana.ID, 10*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := ident.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if got.ID != ana.ID {
		t.Fatalf("token resolved wrong person: %s", got.ID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	ident, r := newResolver(t)
	ana := addPerson(t, r, "Ana", 1042)

	issued := time.Now().UTC()
	ident.Now = func() time.Time { return issued }
	token, err := ident.IssueToken(ana.ID, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ident.Now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := ident.Resolve(context.Background(), token); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	ident, r := newResolver(t)
	ana := addPerson(t, r, "Ana", 1042)

	other := identity.Resolver{Repo: r, Secret: "other-secret"}
	token, err := other.IssueToken(ana.ID, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ident.Resolve(context.Background(), token); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected signature rejection, got %v", err)
	}
}

func TestHint(t *testing.T) {
	if got := identity.Hint("1042"); got != "code:1042" {
		t.Fatalf("hint for code: %q", got)
	}
	if got := identity.Hint("eyJhbGciOi"); got != "token" {
		t.Fatalf("hint for token: %q", got)
	}
	if got := identity.Hint("  "); got != "" {
		t.Fatalf("hint for empty: %q", got)
	}
}
