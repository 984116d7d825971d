// Package app wires the stores, the coordinator and the transports into a
// running server.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"songclash/internal/broadcast"
	"songclash/internal/cache"
	"songclash/internal/config"
	"songclash/internal/repository"
	"songclash/internal/service"
	"songclash/internal/transport/rest"
	"songclash/internal/transport/ws"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 5 * time.Second

// Stores are the connected external stores
type Stores struct {
	Mongo *mongo.Client
	DB    *mongo.Database
	Redis *redis.Client
}

// ConnectStores connects to and pings MongoDB and Redis
func ConnectStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Println("Connected to MongoDB")

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddress(),
	})
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		_ = mongoClient.Disconnect(ctx)
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	log.Println("Connected to Redis")

	return &Stores{
		Mongo: mongoClient,
		DB:    mongoClient.Database(cfg.MongoDatabase),
		Redis: rdb,
	}, nil
}

// Close disconnects both stores
func (s *Stores) Close(ctx context.Context) {
	if err := s.Redis.Close(); err != nil {
		log.Printf("Redis close: %v", err)
	}
	if err := s.Mongo.Disconnect(ctx); err != nil {
		log.Printf("MongoDB disconnect: %v", err)
	}
}

// App holds every long-lived component of the server
type App struct {
	Roster      *repository.Roster
	Leaderboard cache.LeaderboardCache

	Channel     broadcast.Channel
	Coordinator *service.Coordinator

	AuthService *service.AuthService
	GameService *service.GameService
	TeamService *service.TeamService
	Actions     *service.ActionGateway

	WSHub *ws.Hub

	cfg *config.Config
}

// New builds the server on top of connected stores
func New(cfg *config.Config, stores *Stores) (*App, error) {
	roster := repository.NewRoster(stores.DB)
	leaderboard := cache.NewLeaderboardCache(stores.Redis)

	channel, err := newChannel(cfg)
	if err != nil {
		return nil, err
	}

	coord := service.NewCoordinator(roster, service.CoordinatorOptions{
		Cache:         cache.NewStateCache(stores.Redis),
		Scores:        leaderboard,
		Requests:      cache.NewRequestCache(stores.Redis, cfg.RequestKeyTTL),
		IdleTimeout:   cfg.SessionIdleTimeout,
		RequestKeyTTL: cfg.RequestKeyTTL,
		PersistRetry:  cfg.PersistRetry,
		Verbose:       cfg.Verbose,
	})
	coord.SetBroadcaster(channel)
	if err := channel.Bind(coord); err != nil {
		coord.Close()
		_ = channel.Close()
		return nil, err
	}

	authSvc := service.NewAuthService(cfg.JWTSecret)
	gameSvc := service.NewGameService(roster.Games, cache.NewSlugCache(stores.Redis), authSvc)
	teamSvc := service.NewTeamService(roster.Teams, roster.Players, coord, authSvc)

	hub := ws.NewHub(channel)
	teamSvc.SetNotifier(hub)

	return &App{
		Roster:      roster,
		Leaderboard: leaderboard,
		Channel:     channel,
		Coordinator: coord,
		AuthService: authSvc,
		GameService: gameSvc,
		TeamService: teamSvc,
		Actions:     service.NewActionGateway(coord, channel),
		WSHub:       hub,
		cfg:         cfg,
	}, nil
}

func newChannel(cfg *config.Config) (broadcast.Channel, error) {
	if cfg.Transport == config.TransportNATS {
		ch, err := broadcast.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		log.Printf("Broadcasting over NATS at %s", cfg.NATSURL)
		return ch, nil
	}
	return broadcast.NewLocal(), nil
}

// Handler returns the HTTP API
func (a *App) Handler() http.Handler {
	return rest.NewRouter(&rest.Container{
		AuthService:    a.AuthService,
		GameService:    a.GameService,
		TeamService:    a.TeamService,
		States:         a.Coordinator,
		Actions:        a.Actions,
		Leaderboard:    a.Leaderboard,
		WSHub:          a.WSHub,
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
	})
}

// Close stops the hub, the coordinator and the channel, in that order
func (a *App) Close() {
	a.WSHub.Stop()
	a.Coordinator.Close()
	if err := a.Channel.Close(); err != nil {
		log.Printf("Broadcast channel close: %v", err)
	}
}
