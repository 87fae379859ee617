package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	issued, err := IssueToken(secret, Claims{
		OwnerID: "own_abc",
		Name:    "Nora",
		JTI:     "jti_1",
		Exp:     time.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.OwnerID != "own_abc" || claims.Name != "Nora" || claims.JTI != "jti_1" {
		t.Errorf("claims round trip mismatch: %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issued, err := IssueToken([]byte("secret-a"), Claims{OwnerID: "own_abc", Exp: time.Now().Add(time.Minute)})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken([]byte("secret-b"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	issued, err := IssueToken([]byte("secret"), Claims{OwnerID: "own_abc", Exp: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken([]byte("secret"), issued); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken([]byte("secret"), "not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
