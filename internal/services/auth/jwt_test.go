package auth

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "listergram-auth", time.Minute)
	userID := uuid.New()

	raw, expiresAt, err := m.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("unexpected subject: got %s want %s", claims.UserID, userID)
	}
	if !claims.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("unexpected expiry: %s", claims.ExpiresAt)
	}
}

func TestJWTRejectsBadTokens(t *testing.T) {
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)
	m := NewJWTManager("secret", "listergram-auth", time.Minute)
	m.now = func() time.Time { return now }

	valid, _, err := m.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	otherSecret := NewJWTManager("other", "listergram-auth", time.Minute)
	otherSecret.now = m.now
	forged, _, _ := otherSecret.GenerateAccessToken(uuid.New())

	otherIssuer := NewJWTManager("secret", "someone-else", time.Minute)
	otherIssuer.now = m.now
	foreign, _, _ := otherIssuer.GenerateAccessToken(uuid.New())

	numeric, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "listergram-auth",
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}).SignedString([]byte("secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "listergram-auth",
		Subject: uuid.NewString(),
	}).SignedString([]byte("secret"))

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"wrong issuer": foreign,
		"numeric sub":  numeric,
		"no expiry":    noExpiry,
	}
	for name, raw := range cases {
		if _, err := m.ParseAccessToken(raw); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}

	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := m.ParseAccessToken(valid); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired: expected ErrUnauthorized, got %v", err)
	}
}
