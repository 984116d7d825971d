package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"time"

	"songclash/internal/game"
	"songclash/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("connection closed")

const writeWait = 10 * time.Second

// Conn is a WebSocket connection to a game. Snapshots pushed by the server
// are applied to the Store; actions sent through Send wait for their result.
type Conn struct {
	ws    *websocket.Conn
	store *Store

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]chan model.ActionResult
	onRoster func()

	done chan struct{}
	err  error
}

// Dial connects to a game socket, e.g. ws://host/v1/ws/games/ABCD, and starts
// feeding store
func Dial(ctx context.Context, rawURL, token string, store *Store) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("bad url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", rawURL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}

	c := &Conn{
		ws:      ws,
		store:   store,
		pending: make(map[string]chan model.ActionResult),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Store returns the store this connection feeds
func (c *Conn) Store() *Store {
	return c.store
}

// OnRosterChanged sets a callback for team membership changes
func (c *Conn) OnRosterChanged(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRoster = fn
}

// Send submits an action and waits for the server's answer. When a has no
// request id a fresh one is generated, which makes every call a new action.
// To retry safely, set a.RequestID once and reuse it across attempts.
func (c *Conn) Send(ctx context.Context, a game.Action) (*game.State, error) {
	if a.RequestID == "" {
		a.RequestID = uuid.New().String()
	}

	wait := make(chan model.ActionResult, 1)
	c.mu.Lock()
	c.pending[a.RequestID] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, a.RequestID)
		c.mu.Unlock()
	}()

	if err := c.write(model.WSAction, a); err != nil {
		return nil, err
	}

	select {
	case res := <-wait:
		if res.Error != nil {
			return nil, res.Error
		}
		return res.State, nil
	case <-c.done:
		return nil, c.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resync asks the server for the current snapshot
func (c *Conn) Resync() error {
	return c.write(model.WSResync, nil)
}

// Done is closed when the connection ends
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close shuts the connection down
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Conn) write(t model.WSMessageType, payload any) error {
	data, err := model.NewWSMessage(t, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, net.ErrClosed) {
				c.err = ErrClosed
			} else {
				c.err = err
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ignoring malformed message: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg model.WSMessage) {
	switch msg.Type {
	case model.WSState:
		if _, err := c.store.ApplyJSON(msg.Payload); err != nil {
			log.Printf("Ignoring snapshot: %v", err)
		}

	case model.WSActionResult:
		var raw struct {
			RequestID string            `json:"requestId"`
			State     json.RawMessage   `json:"state"`
			Error     *game.ActionError `json:"error"`
		}
		if err := json.Unmarshal(msg.Payload, &raw); err != nil {
			log.Printf("Ignoring malformed action result: %v", err)
			return
		}
		res := model.ActionResult{RequestID: raw.RequestID}
		res.Error = raw.Error
		if len(raw.State) > 0 && raw.Error == nil {
			st, err := game.DecodeState(raw.State)
			if err != nil {
				res.Error = game.Integrity("server sent an invalid state", err)
			} else {
				res.State = st
				c.store.Apply(st)
			}
		}

		c.mu.Lock()
		wait := c.pending[raw.RequestID]
		c.mu.Unlock()
		if wait != nil {
			select {
			case wait <- res:
			default:
			}
		}

	case model.WSRosterChanged:
		c.mu.Lock()
		fn := c.onRoster
		c.mu.Unlock()
		if fn != nil {
			fn()
		}

	case model.WSError:
		var ae game.ActionError
		if err := json.Unmarshal(msg.Payload, &ae); err == nil {
			log.Printf("Server error: %v", &ae)
		}

	default:
		log.Printf("Ignoring message of type %q", msg.Type)
	}
}
