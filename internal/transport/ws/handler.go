package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"songclash/internal/game"
	"songclash/internal/model"
	"songclash/internal/service"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	actionTimeout  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // tokens, not origins, gate access
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub     *Hub
	authSvc *service.AuthService
	gameSvc *service.GameService
	states  service.StateReader
	actions *service.ActionGateway
}

// NewHandler creates a new WebSocket handler
func NewHandler(
	hub *Hub,
	authSvc *service.AuthService,
	gameSvc *service.GameService,
	states service.StateReader,
	actions *service.ActionGateway,
) *Handler {
	return &Handler{
		hub:     hub,
		authSvc: authSvc,
		gameSvc: gameSvc,
		states:  states,
		actions: actions,
	}
}

// GameWS handles GET /v1/ws/games/{slug}
func (h *Handler) GameWS(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	token := r.URL.Query().Get("token")

	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	g, err := h.gameSvc.GetBySlug(r.Context(), slug)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if claims.GameID != g.ID {
		http.Error(w, "token not valid for this game", http.StatusForbidden)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		GameID: g.ID,
		Claims: claims,
		Send:   make(chan []byte, 256),
		Hub:    h.hub,
	}

	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)

	h.sendState(conn)
}

// sendState pushes the current snapshot to one client. Clients drop it if a
// newer one already arrived through the hub.
func (h *Handler) sendState(conn *Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	st, err := h.states.State(ctx, conn.GameID)
	if err != nil {
		log.Printf("Failed to load state of game %s: %v", conn.GameID, err)
		h.hub.SendTo(conn, model.WSError, errorPayload(err))
		return
	}
	h.hub.SendTo(conn, model.WSState, st)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.hub.SendTo(conn, model.WSError, game.Validation("message is not valid JSON"))
			continue
		}

		switch msg.Type {
		case model.WSAction:
			h.handleAction(conn, msg.Payload)
		case model.WSResync:
			h.sendState(conn)
		default:
			h.hub.SendTo(conn, model.WSError, game.Validation("unknown message type %q", msg.Type))
		}
	}
}

func (h *Handler) handleAction(conn *Connection, payload json.RawMessage) {
	// the request id is echoed even when the rest of the action is invalid
	var envelope struct {
		RequestID string `json:"requestId"`
	}
	_ = json.Unmarshal(payload, &envelope)

	var st *game.State
	a, err := game.DecodeAction(payload)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		st, err = h.actions.Submit(ctx, conn.Claims, conn.GameID, a)
		cancel()
	}

	h.hub.SendTo(conn, model.WSActionResult, model.ActionResult{
		RequestID: envelope.RequestID,
		Reply:     game.NewReply(st, err),
	})
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorPayload(err error) *game.ActionError {
	return game.NewReply(nil, err).Error
}
