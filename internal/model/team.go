package model

import "time"

// Team is a set of co-located players sharing guesses and score
type Team struct {
	ID        int64     `json:"id" bson:"_id"`
	GameID    string    `json:"gameId" bson:"gameId"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`

	// Members is filled from memberships, never stored on the team document
	Members []string `json:"members" bson:"-"`
}

// Membership places a player on a team. A player has at most one per game.
type Membership struct {
	GameID   string    `json:"gameId" bson:"gameId"`
	TeamID   int64     `json:"teamId" bson:"teamId"`
	PlayerID string    `json:"playerId" bson:"playerId"`
	JoinedAt time.Time `json:"joinedAt" bson:"joinedAt"`
}

// TeamView is a team with its members' display names
type TeamView struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Members []MemberView `json:"members"`
	Playing bool         `json:"playing"` // part of the current picker rotation
}

// MemberView is one player as shown in a team listing
type MemberView struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}
