package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inventrack/internal/domain"
)

type mapLookup map[string]Identity

func (m mapLookup) ProfileByTokenHash(_ context.Context, hash string) (Identity, error) {
	id, ok := m[hash]
	if !ok {
		return Identity{}, errors.New("no profile")
	}
	return id, nil
}

func TestResolver_WhenTokenKnown_ShouldReturnIdentity(t *testing.T) {
	// Given: a profile stored under the hash of "tok-1"
	r := NewResolver(mapLookup{HashToken("tok-1"): {UserID: "u1", Role: domain.RoleManager}})

	// When: resolving the raw token
	id, err := r.Resolve(context.Background(), "tok-1")

	// Then: the manager identity is returned
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if id.UserID != "u1" || id.Role != domain.RoleManager {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestResolver_WhenStoredRoleUnknown_ShouldDowngradeToViewer(t *testing.T) {
	r := NewResolver(mapLookup{HashToken("tok"): {UserID: "u2", Role: "root"}})

	id, err := r.Resolve(context.Background(), "tok")

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if id.Role != domain.RoleViewer {
		t.Errorf("want viewer, got %q", id.Role)
	}
}

func TestResolver_WhenTokenEmptyOrUnknown_ShouldReturnErrUnauthenticated(t *testing.T) {
	r := NewResolver(mapLookup{})
	for _, tok := range []string{"", "   ", "nope"} {
		if _, err := r.Resolve(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("token %q: want ErrUnauthenticated, got %v", tok, err)
		}
	}
}

func TestNewResolver_WhenNil_ShouldPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewResolver(nil)
}

func TestNewToken_ShouldBeRandomAndPrefixed(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	b, _ := NewToken()
	if a == b {
		t.Error("tokens should differ")
	}
	if !strings.HasPrefix(a, "itk_") {
		t.Errorf("missing prefix: %q", a)
	}
}

func TestNewToken_WhenEntropyFails_ShouldReturnError(t *testing.T) {
	orig := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }
	defer func() { randRead = orig }()

	if _, err := NewToken(); err == nil {
		t.Fatal("expected error")
	}
}

func TestWithIdentity_ShouldRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "u3", Role: domain.RoleAdmin})
	id, ok := FromContext(ctx)
	if !ok || id.UserID != "u3" {
		t.Errorf("got %+v ok=%v", id, ok)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should have no identity")
	}
}
