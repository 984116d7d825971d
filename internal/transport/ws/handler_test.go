package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"songclash/internal/broadcast"
	"songclash/internal/cache"
	"songclash/internal/client"
	"songclash/internal/game"
	"songclash/internal/model"
	"songclash/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

// memStore is a roster and game repository in one
type memStore struct {
	mu    sync.Mutex
	games map[string]*model.Game
	teams []int64
	snaps map[string]*game.State
}

func (m *memStore) Create(_ context.Context, g *model.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[id], nil
}

func (m *memStore) GetBySlug(_ context.Context, slug string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.Slug == slug {
			return g, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	return m.GetByID(ctx, id)
}

func (m *memStore) TeamsForGame(_ context.Context, gameID string) ([]*model.Team, error) {
	var out []*model.Team
	for _, id := range m.teams {
		out = append(out, &model.Team{ID: id, GameID: gameID, Members: []string{"x"}})
	}
	return out, nil
}

func (m *memStore) GetPlayer(context.Context, string) (*model.Player, error) { return nil, nil }

func (m *memStore) PersistSnapshot(_ context.Context, gameID string, st *game.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[gameID] = st.Clone()
	return nil
}

func (m *memStore) LoadLatestSnapshot(_ context.Context, gameID string) (*game.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[gameID].Clone(), nil
}

type testEnv struct {
	server *httptest.Server
	hub    *Hub
	auth   *service.AuthService
	game   *model.Game
	host   string // host token
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := &memStore{games: make(map[string]*model.Game), teams: []int64{1, 2}, snaps: make(map[string]*game.State)}
	auth := service.NewAuthService("secret")
	games := service.NewGameService(store, cache.NewSlugCache(rdb), auth)

	coord := service.NewCoordinator(store, service.CoordinatorOptions{})
	t.Cleanup(coord.Close)
	channel := broadcast.NewLocal()
	if err := channel.Bind(coord); err != nil {
		t.Fatal(err)
	}
	coord.SetBroadcaster(channel)

	hub := NewHub(channel)
	t.Cleanup(hub.Stop)
	handler := NewHandler(hub, auth, games, coord, service.NewActionGateway(coord, channel))

	r := mux.NewRouter()
	r.HandleFunc("/v1/ws/games/{slug}", handler.GameWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	resp, err := games.CreateGame(context.Background(), "creator")
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{server: srv, hub: hub, auth: auth, game: resp.Game, host: resp.Token}
}

func (e *testEnv) url() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/v1/ws/games/" + strings.ToLower(e.game.Slug)
}

func (e *testEnv) dial(t *testing.T, token string) *client.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := client.Dial(ctx, e.url(), token, client.NewStore(e.game.ID))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForRevision(t *testing.T, s *client.Store, rev int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Revision() < rev {
		if time.Now().After(deadline) {
			t.Fatalf("store stuck at revision %d, want %d", s.Revision(), rev)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSnapshotOnConnect(t *testing.T) {
	env := newTestEnv(t)
	host := env.dial(t, env.host)

	deadline := time.Now().Add(2 * time.Second)
	for host.Store().State() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("no snapshot after connecting")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := host.Store().State(); st.Phase != game.PhaseLobby || st.GameID != env.game.ID {
		t.Fatalf("initial snapshot = %+v", st)
	}
}

func TestActionsReachEveryClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	playerToken, err := env.auth.IssuePlayerToken(env.game.ID, "p2", 2)
	if err != nil {
		t.Fatal(err)
	}
	host := env.dial(t, env.host)
	player := env.dial(t, playerToken)

	if _, err := player.Send(ctx, game.Action{Type: game.ActionStartGame, TeamOrder: []int64{1, 2}}); !errors.Is(err, game.ErrForbidden) {
		t.Fatalf("player start: err = %v, want %v", err, game.ErrForbidden)
	}

	if _, err := host.Send(ctx, game.Action{Type: game.ActionStartGame, TeamOrder: []int64{1, 2}}); err != nil {
		t.Fatal(err)
	}
	if _, err := host.Send(ctx, game.Action{Type: game.ActionBeginGuessing}); err != nil {
		t.Fatal(err)
	}
	st, err := player.Send(ctx, game.Action{Type: game.ActionSubmitGuess, TeamID: 1, Correct: true})
	if err != nil {
		t.Fatal(err)
	}
	if st.AttemptsUsed[2] != 1 {
		t.Fatalf("guess not filed under the player's team: %v", st.AttemptsUsed)
	}

	waitForRevision(t, host.Store(), 3)
	waitForRevision(t, player.Store(), 3)
}

func TestDuplicateRequestOverSocket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.dial(t, env.host)

	a := game.Action{Type: game.ActionStartGame, TeamOrder: []int64{1, 2}, RequestID: "start-1"}
	first, err := host.Send(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	again, err := host.Send(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if first.Revision != again.Revision {
		t.Fatalf("duplicate request applied twice: %d then %d", first.Revision, again.Revision)
	}
}

func TestRosterChangedReachesClients(t *testing.T) {
	env := newTestEnv(t)
	host := env.dial(t, env.host)

	changed := make(chan struct{}, 1)
	host.OnRosterChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Watching(env.game.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	env.hub.RosterChanged(env.game.ID)

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatalf("roster_changed not delivered")
	}
}

func TestRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	otherGame, err := env.auth.IssueHostToken("another-game", "creator")
	if err != nil {
		t.Fatal(err)
	}
	for _, token := range []string{"", "garbage", otherGame} {
		if _, err := client.Dial(ctx, env.url(), token, client.NewStore("")); err == nil {
			t.Errorf("dial with token %q succeeded", token)
		}
	}
}
