package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"songclash/internal/client"
	"songclash/internal/game"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type watchOptions struct {
	server string
	slug   string
	token  string
}

func main() {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "songclash-watch",
		Short: "Connects to a game as a client and prints every snapshot it receives.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.slug == "" || opts.token == "" {
				return fmt.Errorf("--slug and --token are required")
			}
			return watch(cmd.Context(), opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.server, "server", "http://localhost:8080", "server base URL (env: SONGCLASH_SERVER)")
	fs.StringVar(&opts.slug, "slug", "", "game slug (env: SONGCLASH_SLUG)")
	fs.StringVar(&opts.token, "token", "", "host or player token (env: SONGCLASH_TOKEN)")

	v := viper.New()
	v.SetEnvPrefix("SONGCLASH")
	v.AutomaticEnv()
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, v.GetString(f.Name))
		}
	})

	cmd.SilenceUsage = true
	cobra.CheckErr(cmd.Execute())
}

func watch(ctx context.Context, opts *watchOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	u, err := url.Parse(opts.server)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/ws/games/" + opts.slug

	store := client.NewStore("")
	store.Subscribe(func(st *game.State) {
		log.Print(describe(st))
	})

	conn, err := client.Dial(ctx, u.String(), opts.token, store)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.OnRosterChanged(func() { log.Println("teams changed") })

	select {
	case <-ctx.Done():
		return nil
	case <-conn.Done():
		return conn.Err()
	}
}

func describe(st *game.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rev %d  %-9s round %d", st.Revision, st.Phase, st.Round)
	if st.PickerTeamID != 0 {
		fmt.Fprintf(&b, "  picker %d", st.PickerTeamID)
	}

	teams := make([]int64, 0, len(st.Scores))
	for id := range st.Scores {
		teams = append(teams, id)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i] < teams[j] })
	for _, id := range teams {
		fmt.Fprintf(&b, "  [%d: %d pts, %d tries]", id, st.Scores[id], st.AttemptsUsed[id])
	}
	if lr := st.LastRound; lr != nil && st.Phase == game.PhasePicking {
		fmt.Fprintf(&b, "  (round %d awards %v, picker bonus %v)", lr.Round, lr.Awards, lr.PickerBonus)
	}
	return b.String()
}
