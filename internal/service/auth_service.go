package service

import (
	"errors"
	"time"

	"songclash/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const tokenLifetime = 24 * time.Hour

// AuthService issues and checks game-scoped tokens
type AuthService struct {
	jwtSecret []byte
	now       func() time.Time
}

// NewAuthService creates a new auth service signing with secret
func NewAuthService(secret string) *AuthService {
	return &AuthService{
		jwtSecret: []byte(secret),
		now:       time.Now,
	}
}

// IssueHostToken creates the token of a game's host display
func (s *AuthService) IssueHostToken(gameID, creatorID string) (string, error) {
	return s.sign(&model.GameClaims{
		GameID:   gameID,
		Role:     model.RoleHost,
		PlayerID: creatorID,
	})
}

// IssuePlayerToken creates the token of a player on a team
func (s *AuthService) IssuePlayerToken(gameID, playerID string, teamID int64) (string, error) {
	return s.sign(&model.GameClaims{
		GameID:   gameID,
		Role:     model.RolePlayer,
		PlayerID: playerID,
		TeamID:   teamID,
	})
}

func (s *AuthService) sign(claims *model.GameClaims) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Validate parses a token and returns its claims
func (s *AuthService) Validate(tokenString string) (*model.GameClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.GameClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.GameClaims)
	if !ok || !token.Valid || claims.GameID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
