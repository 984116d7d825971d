package model

import (
	"encoding/json"

	"songclash/internal/game"
)

// WSMessageType names a WebSocket message
type WSMessageType string

// Server to client
const (
	WSState         WSMessageType = "state"          // payload: game.State
	WSActionResult  WSMessageType = "action_result"  // payload: ActionResult
	WSRosterChanged WSMessageType = "roster_changed" // payload: RosterChanged
	WSError         WSMessageType = "error"          // payload: game.ActionError
)

// Client to server
const (
	WSAction WSMessageType = "action" // payload: game.Action
	WSResync WSMessageType = "resync" // no payload; answered with the current state
)

// WSMessage is the WebSocket envelope format
type WSMessage struct {
	Type    WSMessageType   `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ActionResult answers one action sent over a socket
type ActionResult struct {
	RequestID string `json:"requestId"`
	game.Reply
}

// RosterChanged tells clients to reload the team list
type RosterChanged struct {
	GameID string `json:"gameId"`
}

// NewWSMessage wraps payload in an envelope
func NewWSMessage(t WSMessageType, payload any) ([]byte, error) {
	msg := WSMessage{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return json.Marshal(msg)
}
