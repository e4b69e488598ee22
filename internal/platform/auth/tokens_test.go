package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testIdentity() Identity {
	return Identity{
		UserID:   "5f0c6a1e-8f51-4a55-9d53-1f3c7c1d2b10",
		Email:    "marianne@klinik.dk",
		Name:     "Marianne",
		Role:     RoleAdmin,
		ClinicID: "marianne",
	}
}

func TestIssuer_IssueAndParse(t *testing.T) {
	iss := NewIssuer(testKey, time.Hour)

	token, sess, err := iss.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if token == "" || sess.TokenID == "" {
		t.Fatal("expected token and token id")
	}

	parsed, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if parsed.TokenID != sess.TokenID {
		t.Errorf("expected jti %s, got %s", sess.TokenID, parsed.TokenID)
	}
	if parsed.Role != RoleAdmin || !parsed.IsAdmin() {
		t.Errorf("expected admin session, got %s", parsed.Role)
	}
	if parsed.Name != "Marianne" || parsed.Email != "marianne@klinik.dk" || parsed.ClinicID != "marianne" {
		t.Errorf("unexpected session: %+v", parsed)
	}
	if !parsed.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Errorf("expected expiry %s, got %s", sess.ExpiresAt, parsed.ExpiresAt)
	}
}

func TestIssuer_UniqueTokenIDs(t *testing.T) {
	iss := NewIssuer(testKey, time.Hour)
	_, a, _ := iss.Issue(testIdentity())
	_, b, _ := iss.Issue(testIdentity())
	if a.TokenID == b.TokenID {
		t.Error("expected distinct token ids per login")
	}
}

func TestIssuer_Expired(t *testing.T) {
	iss := NewIssuer(testKey, time.Minute)
	issuedAt := time.Now().Add(-2 * time.Hour)
	iss.now = func() time.Time { return issuedAt }

	token, _, err := iss.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	iss.now = time.Now
	if _, err := iss.Parse(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestIssuer_WrongKey(t *testing.T) {
	token, _, err := NewIssuer(testKey, time.Hour).Issue(testIdentity())
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	other := NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), time.Hour)
	if _, err := other.Parse(token); err == nil {
		t.Error("expected token signed with another key to be rejected")
	}
}

func TestIssuer_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Subject:   "user",
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewIssuer(testKey, time.Hour).Parse(unsigned); err == nil {
		t.Error("expected alg=none token to be rejected")
	}
}

func TestIssuer_RejectsUnknownRole(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Subject:   "user",
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "superuser",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = NewIssuer(testKey, time.Hour).Parse(signed)
	if err == nil || !strings.Contains(err.Error(), "unknown role") {
		t.Errorf("expected unknown role error, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{"employee", RoleEmployee, true},
		{"user", RoleEmployee, true},
		{"Admin", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
