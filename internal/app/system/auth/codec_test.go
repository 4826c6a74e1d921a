package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-session-key-must-be-32-chars-long"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodec_EmptySecret(t *testing.T) {
	if _, err := NewCodec(""); err != ErrEmptySecret {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.Create("user-123", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	claims, ok := c.Verify(tok)
	if !ok {
		t.Fatal("expected token to verify")
	}
	if claims.UserID() != "user-123" {
		t.Errorf("subject: got %q, want %q", claims.UserID(), "user-123")
	}
	if claims.IssuedAt == nil {
		t.Error("expected iat to be set")
	}
}

func TestCodec_Verify_AfterExpiry(t *testing.T) {
	c := newTestCodec(t)
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return issued }

	tok, err := c.Create("user-123", issued.Add(DefaultTTL))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	c.now = func() time.Time { return issued.Add(DefaultTTL - time.Minute) }
	if _, ok := c.Verify(tok); !ok {
		t.Fatal("expected token to verify before expiry")
	}

	c.now = func() time.Time { return issued.Add(DefaultTTL + time.Minute) }
	if claims, ok := c.Verify(tok); ok || claims != nil {
		t.Fatal("expected absence after expiry")
	}
}

func TestCodec_Verify_Tampered(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Create("user-123", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("expected compact JWS, got %d parts", len(parts))
	}

	// Swap the payload for one naming a different subject.
	other, err := c.Create("user-999", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

	if _, ok := c.Verify(forged); ok {
		t.Fatal("expected forged payload to be rejected")
	}

	// Flip a signature character.
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	if _, ok := c.Verify(parts[0] + "." + parts[1] + "." + string(sig)); ok {
		t.Fatal("expected bad signature to be rejected")
	}
}

func TestCodec_Verify_WrongSecret(t *testing.T) {
	c := newTestCodec(t)
	other, _ := NewCodec("a-completely-different-secret-value-0000")

	tok, err := other.Create("user-123", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := c.Verify(tok); ok {
		t.Fatal("expected token signed with another key to be rejected")
	}
}

func TestCodec_Verify_RejectsOtherAlgorithms(t *testing.T) {
	c := newTestCodec(t)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, ok := c.Verify(tok); ok {
		t.Fatal("expected HS512 token to be rejected")
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, ok := c.Verify(none); ok {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestCodec_Verify_MissingExpiry(t *testing.T) {
	c := newTestCodec(t)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, ok := c.Verify(tok); ok {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestCodec_Verify_Garbage(t *testing.T) {
	c := newTestCodec(t)
	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		if _, ok := c.Verify(tok); ok {
			t.Errorf("Verify(%q): expected absence", tok)
		}
	}
}

func TestCodec_Create_EmptySubject(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.Create("", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error for empty subject")
	}
}
