package model

import "time"

// Player is a participant identity
type Player struct {
	ID          string    `json:"id" bson:"_id"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// JoinRequest is the body of a join call
type JoinRequest struct {
	TeamID      int64  `json:"teamId"`
	PlayerID    string `json:"playerId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// PlayerJoinResponse is returned when a player joins a team
type PlayerJoinResponse struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	TeamID      int64  `json:"teamId"`
	Token       string `json:"token"`
	// Queued is set when the game already started without this team;
	// it plays from the next game on
	Queued bool `json:"queued"`
}
