package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"songclash/internal/app"
	"songclash/internal/cache"
	"songclash/internal/config"
	"songclash/internal/model"
	"songclash/internal/repository"
	"songclash/internal/service"

	"github.com/spf13/cobra"
)

var teamNames = []string{"Red Rockers", "Blue Notes", "Green Grooves", "Gold Records", "Purple Rain", "Silver Strings"}

type seedOptions struct {
	teams   int
	players int
}

func main() {
	cfg := &config.Config{}
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "songclash-seed",
		Short: "Creates a demo game with teams and players and prints their tokens.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.teams < 1 || opts.teams > len(teamNames) {
				return fmt.Errorf("--teams must be between 1 and %d", len(teamNames))
			}
			return seed(cmd.Context(), cfg, opts)
		},
	}

	fs := cmd.Flags()
	cfg.RegisterStoreFlags(fs)
	fs.IntVar(&opts.teams, "teams", 3, "number of teams (env: SONGCLASH_TEAMS)")
	fs.IntVar(&opts.players, "players", 2, "players per team (env: SONGCLASH_PLAYERS)")
	config.BindEnv(fs)

	cmd.SilenceUsage = true
	cobra.CheckErr(cmd.Execute())
}

func seed(ctx context.Context, cfg *config.Config, opts *seedOptions) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stores, err := app.ConnectStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	roster := repository.NewRoster(stores.DB)
	coord := service.NewCoordinator(roster, service.CoordinatorOptions{
		Cache: cache.NewStateCache(stores.Redis),
	})
	defer coord.Close()

	authSvc := service.NewAuthService(cfg.JWTSecret)
	gameSvc := service.NewGameService(roster.Games, cache.NewSlugCache(stores.Redis), authSvc)
	teamSvc := service.NewTeamService(roster.Teams, roster.Players, coord, authSvc)

	created, err := gameSvc.CreateGame(ctx, "seed")
	if err != nil {
		return err
	}
	log.Printf("Game %s (id %s)", created.Game.Slug, created.Game.ID)
	log.Printf("  host token: %s", created.Token)

	for i := 0; i < opts.teams; i++ {
		team, err := teamSvc.CreateTeam(ctx, created.Game.ID, teamNames[i])
		if err != nil {
			return err
		}
		log.Printf("Team %d: %s", team.ID, team.Name)

		for j := 0; j < opts.players; j++ {
			joined, err := teamSvc.Join(ctx, created.Game.ID, &model.JoinRequest{TeamID: team.ID})
			if err != nil {
				return err
			}
			log.Printf("  %-16s token: %s", joined.DisplayName, joined.Token)
		}
	}
	return nil
}
