package model

import "github.com/golang-jwt/jwt/v5"

// Role distinguishes the host display from player devices
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// GameClaims are JWT claims for a game-scoped token
type GameClaims struct {
	GameID   string `json:"gameId"`
	Role     Role   `json:"role"`
	PlayerID string `json:"playerId,omitempty"`
	TeamID   int64  `json:"teamId,omitempty"`
	jwt.RegisteredClaims
}

// IsHost reports whether the token belongs to the game's host
func (c *GameClaims) IsHost() bool {
	return c.Role == RoleHost
}
