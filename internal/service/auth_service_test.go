package service

import (
	"errors"
	"testing"
	"time"

	"songclash/internal/model"
)

func TestPlayerTokenRoundTrip(t *testing.T) {
	auth := NewAuthService("secret")

	token, err := auth.IssuePlayerToken("g1", "p1", 7)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.Validate(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.GameID != "g1" || claims.PlayerID != "p1" || claims.TeamID != 7 || claims.Role != model.RolePlayer {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.IsHost() {
		t.Fatalf("player token reported as host")
	}
}

func TestHostToken(t *testing.T) {
	auth := NewAuthService("secret")

	token, err := auth.IssueHostToken("g1", "creator")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.Validate(token)
	if err != nil {
		t.Fatal(err)
	}
	if !claims.IsHost() || claims.GameID != "g1" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	auth := NewAuthService("secret")
	token, err := auth.IssuePlayerToken("g1", "p1", 1)
	if err != nil {
		t.Fatal(err)
	}

	expired := NewAuthService("secret")
	expired.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	tests := []struct {
		name  string
		auth  *AuthService
		token string
	}{
		{"garbage", auth, "not-a-token"},
		{"wrong secret", NewAuthService("other"), token},
		{"expired", expired, token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.auth.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want %v", err, ErrInvalidToken)
			}
		})
	}
}
