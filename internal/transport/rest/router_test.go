package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"songclash/internal/broadcast"
	"songclash/internal/cache"
	"songclash/internal/game"
	"songclash/internal/model"
	"songclash/internal/repository"
	"songclash/internal/service"
	"songclash/internal/transport/rest/handler"
	"songclash/internal/transport/ws"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memDB backs every repository the router needs
type memDB struct {
	mu        sync.Mutex
	games     map[string]*model.Game
	teams     map[int64]*model.Team
	nextTeam  int64
	members   map[string]*model.Membership // gameID/playerID
	players   map[string]*model.Player
	snapshots map[string]*game.State
}

func newMemDB() *memDB {
	return &memDB{
		games:     make(map[string]*model.Game),
		teams:     make(map[int64]*model.Team),
		members:   make(map[string]*model.Membership),
		players:   make(map[string]*model.Player),
		snapshots: make(map[string]*game.State),
	}
}

type memGames struct{ db *memDB }

func (r memGames) Create(_ context.Context, g *model.Game) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.games[g.ID] = g
	return nil
}

func (r memGames) GetByID(_ context.Context, id string) (*model.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.games[id], nil
}

func (r memGames) GetBySlug(_ context.Context, slug string) (*model.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, g := range r.db.games {
		if g.Slug == slug {
			return g, nil
		}
	}
	return nil, nil
}

type memTeams struct{ db *memDB }

func (r memTeams) Create(_ context.Context, t *model.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.nextTeam++
	t.ID = r.db.nextTeam
	r.db.teams[t.ID] = t
	return nil
}

func (r memTeams) GetByID(_ context.Context, id int64) (*model.Team, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.teams[id], nil
}

func (r memTeams) ListByGame(_ context.Context, gameID string) ([]*model.Team, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Team
	for _, t := range r.db.teams {
		if t.GameID != gameID {
			continue
		}
		cp := *t
		cp.Members = []string{}
		for _, m := range r.db.members {
			if m.GameID == gameID && m.TeamID == t.ID {
				cp.Members = append(cp.Members, m.PlayerID)
			}
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTeams) AddMember(_ context.Context, m *model.Membership) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := m.GameID + "/" + m.PlayerID
	if _, ok := r.db.members[key]; ok {
		return repository.ErrAlreadyOnTeam
	}
	r.db.members[key] = m
	return nil
}

func (r memTeams) RemoveMember(_ context.Context, gameID, playerID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := gameID + "/" + playerID
	_, ok := r.db.members[key]
	delete(r.db.members, key)
	return ok, nil
}

func (r memTeams) MembershipOf(_ context.Context, gameID, playerID string) (*model.Membership, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.members[gameID+"/"+playerID], nil
}

type memPlayers struct{ db *memDB }

func (r memPlayers) Create(_ context.Context, p *model.Player) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.players[p.ID] = p
	return nil
}

func (r memPlayers) GetByID(_ context.Context, id string) (*model.Player, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.players[id], nil
}

func (r memPlayers) GetMany(_ context.Context, ids []string) (map[string]*model.Player, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make(map[string]*model.Player)
	for _, id := range ids {
		if p, ok := r.db.players[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r memPlayers) Rename(_ context.Context, id, name string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.players[id]; ok {
		p.DisplayName = name
	}
	return nil
}

// memRoster adapts memDB to the coordinator's roster store
type memRoster struct{ db *memDB }

func (r memRoster) GetGame(ctx context.Context, id string) (*model.Game, error) {
	return memGames(r).GetByID(ctx, id)
}

func (r memRoster) TeamsForGame(ctx context.Context, id string) ([]*model.Team, error) {
	return memTeams(r).ListByGame(ctx, id)
}

func (r memRoster) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	return memPlayers(r).GetByID(ctx, id)
}

func (r memRoster) PersistSnapshot(_ context.Context, gameID string, st *game.State) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.snapshots[gameID] = st.Clone()
	return nil
}

func (r memRoster) LoadLatestSnapshot(_ context.Context, gameID string) (*game.State, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.snapshots[gameID].Clone(), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := newMemDB()
	leaderboard := cache.NewLeaderboardCache(rdb)
	auth := service.NewAuthService("secret")

	coord := service.NewCoordinator(memRoster{db}, service.CoordinatorOptions{
		Cache:  cache.NewStateCache(rdb),
		Scores: leaderboard,
	})
	t.Cleanup(coord.Close)

	channel := broadcast.NewLocal()
	if err := channel.Bind(coord); err != nil {
		t.Fatal(err)
	}
	coord.SetBroadcaster(channel)

	hub := ws.NewHub(channel)
	t.Cleanup(hub.Stop)

	teams := service.NewTeamService(memTeams{db}, memPlayers{db}, coord, auth)
	teams.SetNotifier(hub)

	srv := httptest.NewServer(NewRouter(&Container{
		AuthService:    auth,
		GameService:    service.NewGameService(memGames{db}, cache.NewSlugCache(rdb), auth),
		TeamService:    teams,
		States:         coord,
		Actions:        service.NewActionGateway(coord, channel),
		Leaderboard:    leaderboard,
		WSHub:          hub,
		AllowedOrigins: []string{"https://songclash.example"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestGameLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var created model.CreateGameResponse
	if code := call(t, srv, "POST", "/v1/games", "", handler.CreateGameRequest{CreatorID: "host-1"}, &created); code != http.StatusCreated {
		t.Fatalf("create game: status %d", code)
	}
	base := "/v1/games/" + created.Game.Slug
	host := created.Token

	var red, blue model.Team
	if code := call(t, srv, "POST", base+"/teams", host, map[string]string{"name": "Red"}, &red); code != http.StatusCreated {
		t.Fatalf("create team: status %d", code)
	}
	call(t, srv, "POST", base+"/teams", host, map[string]string{"name": "Blue"}, &blue)

	var ana, bo model.PlayerJoinResponse
	if code := call(t, srv, "POST", base+"/join", "", model.JoinRequest{TeamID: red.ID, DisplayName: "Ana"}, &ana); code != http.StatusOK {
		t.Fatalf("join: status %d", code)
	}
	call(t, srv, "POST", base+"/join", "", model.JoinRequest{TeamID: blue.ID, DisplayName: "Bo"}, &bo)

	var listed struct {
		Teams []model.TeamView `json:"teams"`
	}
	call(t, srv, "GET", base+"/teams", "", nil, &listed)
	if len(listed.Teams) != 2 || listed.Teams[0].Members[0].DisplayName != "Ana" {
		t.Fatalf("teams = %+v", listed.Teams)
	}

	start := game.Action{Type: game.ActionStartGame, TeamOrder: []int64{red.ID, blue.ID}}
	if code := call(t, srv, "POST", base+"/actions", ana.Token, start, nil); code != http.StatusForbidden {
		t.Fatalf("player start: status %d, want 403", code)
	}
	var st game.State
	if code := call(t, srv, "POST", base+"/actions", host, start, &st); code != http.StatusOK {
		t.Fatalf("start: status %d", code)
	}

	// Ana's team picks; Bo guesses
	call(t, srv, "POST", base+"/actions", ana.Token, game.Action{Type: game.ActionBeginGuessing}, &st)
	if st.Phase != game.PhaseGuessing {
		t.Fatalf("phase = %s", st.Phase)
	}
	if code := call(t, srv, "POST", base+"/actions", ana.Token, game.Action{Type: game.ActionSubmitGuess, TeamID: red.ID}, nil); code != http.StatusConflict {
		t.Fatalf("picker guess: status %d, want 409", code)
	}
	call(t, srv, "POST", base+"/actions", bo.Token, game.Action{Type: game.ActionSubmitGuess, TeamID: red.ID, Correct: true}, &st)
	call(t, srv, "POST", base+"/actions", ana.Token, game.Action{Type: game.ActionEndRound}, &st)

	if st.Scores[blue.ID] != 3 || st.Scores[red.ID] != 1 || st.PickerTeamID != blue.ID {
		t.Fatalf("after round: scores=%v picker=%d", st.Scores, st.PickerTeamID)
	}

	var current game.State
	call(t, srv, "GET", base+"/state", "", nil, &current)
	if current.Revision != st.Revision {
		t.Fatalf("state revision = %d, want %d", current.Revision, st.Revision)
	}

	var board struct {
		Leaderboard []cache.LeaderboardEntry `json:"leaderboard"`
	}
	call(t, srv, "GET", base+"/leaderboard", "", nil, &board)
	if len(board.Leaderboard) != 2 || board.Leaderboard[0].TeamID != blue.ID || board.Leaderboard[0].Name != "Blue" {
		t.Fatalf("leaderboard = %+v", board.Leaderboard)
	}

	if code := call(t, srv, "DELETE", base+"/members/"+ana.PlayerID, bo.Token, nil, nil); code != http.StatusForbidden {
		t.Fatalf("leave for someone else: status %d, want 403", code)
	}
	if code := call(t, srv, "DELETE", base+"/members/"+ana.PlayerID, ana.Token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("leave: status %d", code)
	}
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t)

	var created model.CreateGameResponse
	call(t, srv, "POST", "/v1/games", "", handler.CreateGameRequest{CreatorID: "host-1"}, &created)
	base := "/v1/games/" + created.Game.Slug

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"unknown slug", "GET", "/v1/games/QQQQ", "", nil, http.StatusNotFound},
		{"missing creator", "POST", "/v1/games", "", handler.CreateGameRequest{CreatorID: ""}, http.StatusBadRequest},
		{"team without token", "POST", base + "/teams", "", map[string]string{"name": "X"}, http.StatusUnauthorized},
		{"join unknown team", "POST", base + "/join", "", model.JoinRequest{TeamID: 42}, http.StatusNotFound},
		{"malformed action", "POST", base + "/actions", created.Token, game.Action{Type: "dance"}, http.StatusBadRequest},
		{"wrong phase", "POST", base + "/actions", created.Token, game.Action{Type: game.ActionEndRound}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := call(t, srv, tt.method, tt.path, tt.token, tt.body, nil); code != tt.want {
				t.Fatalf("status %d, want %d", code, tt.want)
			}
		})
	}
}

func TestHealthAndCORS(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest("OPTIONS", srv.URL+"/v1/games", nil)
	req.Header.Set("Origin", "https://songclash.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://songclash.example" {
		t.Fatalf("allow origin = %q", got)
	}

	if code := call(t, srv, "GET", "/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("health: status %d", code)
	}
}
