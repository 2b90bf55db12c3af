package auth

import (
	"strings"
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"bearer token", "Bearer abc123", "abc123", false},
		{"lowercase bearer", "bearer abc123", "abc123", false},
		{"empty header", "", "", true},
		{"missing scheme", "abc123", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"empty token", "Bearer ", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ExtractToken(%q) expected error, got %q", tc.header, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractToken(%q) error: %v", tc.header, err)
			}
			if got != tc.want {
				t.Errorf("ExtractToken(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

func TestGenerateAndVerifyToken(t *testing.T) {
	jwtAuth, err := NewLocalJWTAuth("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewLocalJWTAuth error: %v", err)
	}

	token, err := jwtAuth.GenerateToken("author-1", "nightowl")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	author, err := jwtAuth.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if author.ID != "author-1" {
		t.Errorf("author id = %q, want author-1", author.ID)
	}
	if author.Handle != "nightowl" {
		t.Errorf("handle = %q, want nightowl", author.Handle)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer, _ := NewLocalJWTAuth("secret-a", time.Hour)
	verifier, _ := NewLocalJWTAuth("secret-b", time.Hour)

	token, err := issuer.GenerateToken("author-1", "")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := verifier.VerifyToken(token); err == nil {
		t.Fatal("expected verification to fail with different secret")
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	jwtAuth, _ := NewLocalJWTAuth("test-secret", time.Hour)
	if _, err := jwtAuth.VerifyToken("not-a-token"); err == nil {
		t.Fatal("expected verification to fail for malformed token")
	}
}

func TestNewLocalJWTAuthRequiresSecret(t *testing.T) {
	if _, err := NewLocalJWTAuth("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestDerivePseudonymIsStable(t *testing.T) {
	a := DerivePseudonym("midnight phrase", "server-salt")
	b := DerivePseudonym("midnight phrase", "server-salt")
	if a != b {
		t.Errorf("same phrase produced different pseudonyms: %q vs %q", a, b)
	}

	other := DerivePseudonym("different phrase", "server-salt")
	if a == other {
		t.Error("different phrases produced the same pseudonym")
	}

	salted := DerivePseudonym("midnight phrase", "other-salt")
	if a == salted {
		t.Error("different salts produced the same pseudonym")
	}

	if strings.ContainsAny(a, "+/=") {
		t.Errorf("pseudonym %q is not URL-safe", a)
	}
}
