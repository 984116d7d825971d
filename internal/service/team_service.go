package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"songclash/internal/game"
	"songclash/internal/model"
	"songclash/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNotAMember     = errors.New("player is not on a team in this game")
)

const maxNameLen = 40

// StateReader returns a game's current authoritative state
type StateReader interface {
	State(ctx context.Context, gameID string) (*game.State, error)
}

// TeamService handles teams and the players joining them
type TeamService struct {
	teamRepo   repository.TeamRepo
	playerRepo repository.PlayerRepo
	states     StateReader
	authSvc    *AuthService
	notifier   RosterNotifier
}

// NewTeamService creates a new team service
func NewTeamService(
	teamRepo repository.TeamRepo,
	playerRepo repository.PlayerRepo,
	states StateReader,
	authSvc *AuthService,
) *TeamService {
	return &TeamService{
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		states:     states,
		authSvc:    authSvc,
	}
}

// SetNotifier sets who is told about membership changes
func (s *TeamService) SetNotifier(n RosterNotifier) {
	s.notifier = n
}

// CreateTeam adds a team to a game
func (s *TeamService) CreateTeam(ctx context.Context, gameID, name string) (*model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return nil, game.Validation("team name must be 1 to %d characters", maxNameLen)
	}

	team := &model.Team{
		GameID:    gameID,
		Name:      name,
		CreatedAt: time.Now(),
		Members:   []string{},
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	s.rosterChanged(gameID)
	return team, nil
}

// ListTeams returns the game's teams with member names, marking those in the
// current rotation
func (s *TeamService) ListTeams(ctx context.Context, gameID string) ([]model.TeamView, error) {
	teams, err := s.teamRepo.ListByGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	var ids []string
	for _, t := range teams {
		ids = append(ids, t.Members...)
	}
	players, err := s.playerRepo.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	st, err := s.states.State(ctx, gameID)
	if err != nil {
		return nil, err
	}

	views := make([]model.TeamView, 0, len(teams))
	for _, t := range teams {
		v := model.TeamView{
			ID:      t.ID,
			Name:    t.Name,
			Members: make([]model.MemberView, 0, len(t.Members)),
			Playing: st.InRotation(t.ID),
		}
		for _, id := range t.Members {
			mv := model.MemberView{PlayerID: id}
			if p := players[id]; p != nil {
				mv.DisplayName = p.DisplayName
			}
			v.Members = append(v.Members, mv)
		}
		views = append(views, v)
	}
	return views, nil
}

// Join puts a player on a team, creating the player when no id is given.
// Teams that join after the game started wait outside the rotation.
func (s *TeamService) Join(ctx context.Context, gameID string, req *model.JoinRequest) (*model.PlayerJoinResponse, error) {
	team, err := s.teamRepo.GetByID(ctx, req.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if team == nil || team.GameID != gameID {
		return nil, ErrTeamNotFound
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if len(displayName) > maxNameLen {
		return nil, game.Validation("display name must be at most %d characters", maxNameLen)
	}

	player, err := s.resolvePlayer(ctx, req.PlayerID, displayName)
	if err != nil {
		return nil, err
	}

	err = s.teamRepo.AddMember(ctx, &model.Membership{
		GameID:   gameID,
		TeamID:   team.ID,
		PlayerID: player.ID,
		JoinedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	token, err := s.authSvc.IssuePlayerToken(gameID, player.ID, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	st, err := s.states.State(ctx, gameID)
	if err != nil {
		return nil, err
	}

	s.rosterChanged(gameID)
	return &model.PlayerJoinResponse{
		PlayerID:    player.ID,
		DisplayName: player.DisplayName,
		TeamID:      team.ID,
		Token:       token,
		Queued:      st.Phase != game.PhaseLobby && !st.InRotation(team.ID),
	}, nil
}

func (s *TeamService) resolvePlayer(ctx context.Context, playerID, displayName string) (*model.Player, error) {
	if playerID == "" {
		if displayName == "" {
			displayName = randomDisplayName()
		}
		p := &model.Player{
			ID:          uuid.New().String(),
			DisplayName: displayName,
			CreatedAt:   time.Now(),
		}
		if err := s.playerRepo.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to create player: %w", err)
		}
		return p, nil
	}

	p, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if displayName != "" && displayName != p.DisplayName {
		if err := s.playerRepo.Rename(ctx, p.ID, displayName); err != nil {
			return nil, fmt.Errorf("failed to rename player: %w", err)
		}
		p.DisplayName = displayName
	}
	return p, nil
}

// Leave removes a player from their team. The team keeps its place in the
// rotation.
func (s *TeamService) Leave(ctx context.Context, gameID, playerID string) error {
	removed, err := s.teamRepo.RemoveMember(ctx, gameID, playerID)
	if err != nil {
		return fmt.Errorf("failed to leave team: %w", err)
	}
	if !removed {
		return ErrNotAMember
	}
	s.rosterChanged(gameID)
	return nil
}

func (s *TeamService) rosterChanged(gameID string) {
	if s.notifier != nil {
		s.notifier.RosterChanged(gameID)
	}
}
