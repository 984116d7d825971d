package ws

import (
	"log"
	"sync"

	"songclash/internal/broadcast"
	"songclash/internal/game"
	"songclash/internal/model"
)

// Hub manages WebSocket connections per game. It subscribes to a game's
// snapshots on the broadcast channel while at least one client watches it.
type Hub struct {
	channel broadcast.Channel

	// game -> connections
	conns map[string]map[*Connection]struct{}
	unsub map[string]func()

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	quit       chan struct{}
	stopOnce   sync.Once
}

// Connection represents a WebSocket connection
type Connection struct {
	GameID string
	Claims *model.GameClaims
	Send   chan []byte
	Hub    *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	GameID string
	ToConn *Connection // nil means every connection of the game
	Data   []byte
}

// NewHub creates a new WebSocket hub fed by channel
func NewHub(channel broadcast.Channel) *Hub {
	h := &Hub{
		channel:    channel,
		conns:      make(map[string]map[*Connection]struct{}),
		unsub:      make(map[string]func()),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		quit:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.GameID] == nil {
				h.conns[conn.GameID] = make(map[*Connection]struct{})
				h.subscribe(conn.GameID)
			}
			h.conns[conn.GameID][conn] = struct{}{}
			h.mu.Unlock()
			log.Printf("%s %s connected to game %s", conn.Claims.Role, conn.Claims.PlayerID, conn.GameID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.conns[conn.GameID]; ok {
				if _, ok := conns[conn]; ok {
					delete(conns, conn)
					close(conn.Send)
					log.Printf("%s %s disconnected from game %s", conn.Claims.Role, conn.Claims.PlayerID, conn.GameID)
				}
				if len(conns) == 0 {
					delete(h.conns, conn.GameID)
					if unsub := h.unsub[conn.GameID]; unsub != nil {
						unsub()
						delete(h.unsub, conn.GameID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.ToConn != nil {
				if _, ok := h.conns[msg.GameID][msg.ToConn]; ok {
					select {
					case msg.ToConn.Send <- msg.Data:
					default:
						// Drop message if buffer full
					}
				}
			} else {
				for conn := range h.conns[msg.GameID] {
					select {
					case conn.Send <- msg.Data:
					default:
					}
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for gameID, conns := range h.conns {
				for conn := range conns {
					close(conn.Send)
				}
				if unsub := h.unsub[gameID]; unsub != nil {
					unsub()
				}
			}
			h.conns = make(map[string]map[*Connection]struct{})
			h.unsub = make(map[string]func())
			h.mu.Unlock()
			return
		}
	}
}

// subscribe starts relaying the game's snapshots. Called with h.mu held.
func (h *Hub) subscribe(gameID string) {
	unsub, err := h.channel.Subscribe(gameID, func(st *game.State) {
		h.BroadcastState(gameID, st)
	})
	if err != nil {
		log.Printf("Failed to subscribe to game %s: %v", gameID, err)
		return
	}
	h.unsub[gameID] = unsub
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.quit:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.quit:
	}
}

// Stop closes every connection and ends the hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// BroadcastState sends a snapshot to everyone watching the game
func (h *Hub) BroadcastState(gameID string, st *game.State) {
	h.send(gameID, nil, model.WSState, st)
}

// RosterChanged tells the game's clients to reload teams (implements service.RosterNotifier)
func (h *Hub) RosterChanged(gameID string) {
	h.send(gameID, nil, model.WSRosterChanged, model.RosterChanged{GameID: gameID})
}

// SendTo sends a message to one connection
func (h *Hub) SendTo(conn *Connection, t model.WSMessageType, payload any) {
	h.send(conn.GameID, conn, t, payload)
}

func (h *Hub) send(gameID string, to *Connection, t model.WSMessageType, payload any) {
	data, err := model.NewWSMessage(t, payload)
	if err != nil {
		log.Printf("Failed to encode %s message: %v", t, err)
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{GameID: gameID, ToConn: to, Data: data}:
	case <-h.quit:
	}
}

// Watching returns how many connections watch gameID
func (h *Hub) Watching(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[gameID])
}
