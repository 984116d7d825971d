package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"songclash/internal/game"

	"github.com/nats-io/nats.go"
)

const (
	subjectPrefix = "songclash.game."
	// coordinatorQueue spreads actions over every bound coordinator; each
	// action is handled by exactly one of them.
	coordinatorQueue = "coordinator"
	actionTimeout    = 10 * time.Second
)

func stateSubject(gameID string) string {
	return subjectPrefix + gameID + ".state"
}

func actionSubject(gameID string) string {
	return subjectPrefix + gameID + ".actions"
}

// gameFromSubject extracts <id> from songclash.game.<id>.actions
func gameFromSubject(subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, subjectPrefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ".actions")
	return id, ok && id != "" && !strings.Contains(id, ".")
}

// NATS is a Channel over a NATS connection, letting hubs and coordinators
// run in separate processes
type NATS struct {
	nc *nats.Conn

	mu   sync.Mutex
	bind *nats.Subscription
}

// ConnectNATS dials url and returns a channel that owns the connection
func ConnectNATS(url string) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("songclash"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATS(nc), nil
}

// NewNATS wraps an existing connection
func NewNATS(nc *nats.Conn) *NATS {
	return &NATS{nc: nc}
}

func (n *NATS) Publish(_ context.Context, gameID string, st *game.State) error {
	data, err := game.EncodeState(st)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return n.nc.Publish(stateSubject(gameID), data)
}

// Subscribe delivers snapshots of gameID. Messages that fail validation or
// belong to another game are dropped.
func (n *NATS) Subscribe(gameID string, h Handler) (func(), error) {
	sub, err := n.nc.Subscribe(stateSubject(gameID), func(msg *nats.Msg) {
		st, err := game.DecodeState(msg.Data)
		if err != nil {
			log.Printf("Dropping invalid snapshot on %s: %v", msg.Subject, err)
			return
		}
		if st.GameID != gameID {
			log.Printf("Dropping snapshot of game %s on %s", st.GameID, msg.Subject)
			return
		}
		h(st)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", stateSubject(gameID), err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
			log.Printf("Unsubscribe from %s failed: %v", sub.Subject, err)
		}
	}, nil
}

// SendAction asks whichever coordinator is bound to apply a and waits for its reply
func (n *NATS) SendAction(ctx context.Context, gameID string, a game.Action) (*game.State, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, actionTimeout)
		defer cancel()
	}

	msg, err := n.nc.RequestWithContext(ctx, actionSubject(gameID), data)
	if err == nats.ErrNoResponders {
		return nil, ErrNoCoordinator
	}
	if err != nil {
		return nil, fmt.Errorf("send action: %w", err)
	}
	return game.DecodeReply(msg.Data)
}

// Bind serves actions for every game with sink
func (n *NATS) Bind(sink ActionSink) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bind != nil {
		_ = n.bind.Unsubscribe()
		n.bind = nil
	}

	sub, err := n.nc.QueueSubscribe(subjectPrefix+"*.actions", coordinatorQueue, func(msg *nats.Msg) {
		n.serveAction(sink, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to bind coordinator: %w", err)
	}
	n.bind = sub
	return nil
}

func (n *NATS) serveAction(sink ActionSink, msg *nats.Msg) {
	var reply game.Reply

	gameID, ok := gameFromSubject(msg.Subject)
	if !ok {
		reply = game.NewReply(nil, game.Validation("bad action subject %q", msg.Subject))
	} else if a, err := game.DecodeAction(msg.Data); err != nil {
		reply = game.NewReply(nil, err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		st, err := sink.SubmitAction(ctx, gameID, a)
		cancel()
		reply = game.NewReply(st, err)
	}

	data, err := json.Marshal(reply)
	if err != nil {
		log.Printf("Failed to encode reply on %s: %v", msg.Subject, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("Failed to reply on %s: %v", msg.Subject, err)
	}
}

// Close drains the connection so in-flight replies are delivered
func (n *NATS) Close() error {
	return n.nc.Drain()
}
