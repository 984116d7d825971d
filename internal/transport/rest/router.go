package rest

import (
	"net/http"
	"strings"

	"songclash/internal/cache"
	"songclash/internal/service"
	"songclash/internal/transport/rest/handler"
	"songclash/internal/transport/rest/middleware"
	"songclash/internal/transport/ws"

	"github.com/gorilla/mux"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService *service.AuthService
	GameService *service.GameService
	TeamService *service.TeamService
	States      service.StateReader
	Actions     *service.ActionGateway
	Leaderboard cache.LeaderboardCache
	WSHub       *ws.Hub

	// AllowedOrigins is the CORS allow list, "*" when empty
	AllowedOrigins []string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	gameHandler := handler.NewGameHandler(c.GameService, c.TeamService, c.States, c.Actions, c.Leaderboard)
	teamHandler := handler.NewTeamHandler(c.GameService, c.TeamService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.GameService, c.States, c.Actions)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/games", gameHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/games/{slug}", gameHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/games/{slug}/state", gameHandler.State).Methods("GET", "OPTIONS")
	v1.HandleFunc("/games/{slug}/leaderboard", gameHandler.Leaderboard).Methods("GET", "OPTIONS")
	v1.HandleFunc("/games/{slug}/teams", teamHandler.List).Methods("GET", "OPTIONS")
	v1.HandleFunc("/games/{slug}/join", teamHandler.Join).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/games/{slug}", wsHandler.GameWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Host routes (require host auth)
	hostRoutes := v1.NewRoute().Subrouter()
	hostRoutes.Use(authMW.RequireHost)

	hostRoutes.HandleFunc("/games/{slug}/teams", teamHandler.Create).Methods("POST", "OPTIONS")

	// Routes open to any game token
	memberRoutes := v1.NewRoute().Subrouter()
	memberRoutes.Use(authMW.RequireToken)

	memberRoutes.HandleFunc("/games/{slug}/actions", gameHandler.Action).Methods("POST", "OPTIONS")
	memberRoutes.HandleFunc("/games/{slug}/members/{playerId}", teamHandler.Leave).Methods("DELETE", "OPTIONS")

	return r
}

func corsMiddleware(origins []string) mux.MiddlewareFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", strings.Join([]string{"GET", "POST", "DELETE", "OPTIONS"}, ", "))
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
