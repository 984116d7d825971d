package model

import "time"

// Game is one play session, addressed by a short shareable slug
type Game struct {
	ID        string    `json:"id" bson:"_id"`
	Slug      string    `json:"slug" bson:"slug"`
	CreatorID string    `json:"creatorId" bson:"creatorId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Snapshot is the persisted copy of a game's authoritative state.
// StateJSON holds the wire form so the stored and broadcast shapes never drift.
type Snapshot struct {
	GameID    string    `json:"gameId" bson:"_id"`
	Revision  int64     `json:"revision" bson:"revision"`
	StateJSON string    `json:"stateJson" bson:"stateJson"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CreateGameResponse is returned when a game is created
type CreateGameResponse struct {
	Game  *Game  `json:"game"`
	Token string `json:"token"`
}
