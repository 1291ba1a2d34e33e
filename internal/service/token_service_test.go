package service

import (
	"testing"
	"time"

	"github.com/stemsi/exstem-mock/internal/config"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})

	token, err := svc.Issue("session-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.SessionID != "session-1" || claims.Subject != "session-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})
	other := NewTokenService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour})
	expired := NewTokenService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	foreign, err := other.Issue("session-1")
	if err != nil {
		t.Fatal(err)
	}
	stale, err := expired.Issue("session-1")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", stale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Validate(tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
