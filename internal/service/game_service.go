package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"songclash/internal/cache"
	"songclash/internal/model"
	"songclash/internal/repository"

	"github.com/google/uuid"
)

var ErrGameNotFound = errors.New("game not found")

const (
	slugChars    = "ABCDEFGHJKLMNPQRSTUVWXYZ" // no I or O
	slugLen      = 4
	slugAttempts = 10
)

// GameService creates games and resolves their slugs
type GameService struct {
	gameRepo  repository.GameRepo
	slugCache cache.SlugCache
	authSvc   *AuthService
}

// NewGameService creates a new game service
func NewGameService(gameRepo repository.GameRepo, slugCache cache.SlugCache, authSvc *AuthService) *GameService {
	return &GameService{
		gameRepo:  gameRepo,
		slugCache: slugCache,
		authSvc:   authSvc,
	}
}

// CreateGame creates a game with a fresh slug and returns it with a host token
func (s *GameService) CreateGame(ctx context.Context, creatorID string) (*model.CreateGameResponse, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, fmt.Errorf("creatorId is required")
	}

	g := &model.Game{
		ID:        uuid.New().String(),
		CreatorID: creatorID,
		CreatedAt: time.Now(),
	}

	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug, err := generateSlug()
		if err != nil {
			return nil, fmt.Errorf("failed to generate slug: %w", err)
		}

		ok, err := s.slugCache.Reserve(ctx, slug, g.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve slug: %w", err)
		}
		if !ok {
			continue
		}

		g.Slug = slug
		err = s.gameRepo.Create(ctx, g)
		if errors.Is(err, repository.ErrSlugTaken) {
			// reserved in redis but an older game still holds it in mongo
			_ = s.slugCache.Release(ctx, slug)
			continue
		}
		if err != nil {
			_ = s.slugCache.Release(ctx, slug)
			return nil, fmt.Errorf("failed to create game: %w", err)
		}

		token, err := s.authSvc.IssueHostToken(g.ID, creatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		return &model.CreateGameResponse{Game: g, Token: token}, nil
	}

	return nil, fmt.Errorf("failed to generate unique slug")
}

// GetBySlug looks a game up by its slug, case-insensitively
func (s *GameService) GetBySlug(ctx context.Context, slug string) (*model.Game, error) {
	slug = strings.ToUpper(strings.TrimSpace(slug))
	if len(slug) != slugLen {
		return nil, ErrGameNotFound
	}

	if id, err := s.slugCache.Resolve(ctx, slug); err == nil && id != "" {
		g, err := s.gameRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if g != nil {
			return g, nil
		}
	}

	g, err := s.gameRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	return g, nil
}

func generateSlug() (string, error) {
	b := make([]byte, slugLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	code := make([]byte, slugLen)
	for i := range code {
		code[i] = slugChars[int(b[i])%len(slugChars)]
	}
	return string(code), nil
}
