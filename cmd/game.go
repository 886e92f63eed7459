package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gadgetwars.ai/internal/game"
	"gadgetwars.ai/internal/persistence/store"
	"gadgetwars.ai/internal/sim/engine"
)

func newGameCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Create and operate games",
	}
	cmd.AddCommand(
		newGameCreateCmd(cfg),
		newGameListCmd(cfg),
		newGameStandingsCmd(cfg),
		newGameResolveCmd(cfg),
		newGameSubmissionsCmd(cfg),
		newGameEventCmd(cfg),
	)
	return cmd
}

func newGameCreateCmd(cfg *config) *cobra.Command {
	var (
		name      string
		teams     []string
		maxRounds int
		cash      float64
		seedSalt  string
	)

	cmd := &cobra.Command{
		Use:   "create <game-id>",
		Short: "Create a game with identical starting states for every team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			roster, err := parseTeams(teams)
			if err != nil {
				return err
			}
			if seedSalt == "" {
				seedSalt = uuid.NewString()
			}
			g := store.Game{ID: args[0], Name: name, SeedSalt: seedSalt, MaxRounds: maxRounds}
			if g.Name == "" {
				g.Name = g.ID
			}
			if err := app.runner.CreateGame(g, roster, cash); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s: %d teams, %d rounds, %.0f starting cash\n",
				g.ID, len(roster), maxRounds, cash)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (default: the game id)")
	cmd.Flags().StringArrayVar(&teams, "team", nil, "team as id or id:name (repeatable)")
	cmd.Flags().IntVar(&maxRounds, "rounds", 12, "number of rounds")
	cmd.Flags().Float64Var(&cash, "cash", 500000, "starting cash per team")
	cmd.Flags().StringVar(&seedSalt, "seed-salt", "", "audit seed salt (default: random)")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func parseTeams(specs []string) ([]store.Team, error) {
	var out []store.Team
	seen := map[string]bool{}
	for _, s := range specs {
		id, name, _ := strings.Cut(s, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("empty team id in %q", s)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate team %s", id)
		}
		seen[id] = true
		if name = strings.TrimSpace(name); name == "" {
			name = id
		}
		out = append(out, store.Team{ID: engine.TeamID(id), Name: name})
	}
	return out, nil
}

func newGameListCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List games",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			games, err := app.store.Games()
			if err != nil {
				return err
			}
			for _, g := range games {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tround %d/%d\t%s\n",
					g.ID, g.Name, g.CurrentRound, g.MaxRounds, g.Status)
			}
			return nil
		},
	}
}

func newGameStandingsCmd(cfg *config) *cobra.Command {
	var round int

	cmd := &cobra.Command{
		Use:   "standings <game-id>",
		Short: "Print the ranking after the last resolved round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			g, err := app.store.Game(args[0])
			if err != nil {
				return err
			}
			r := round
			if r == 0 {
				r = g.CurrentRound - 1
				if g.Status == store.GameComplete {
					r = g.MaxRounds
				}
			}
			if r < 1 {
				return fmt.Errorf("game %s has no resolved rounds yet", g.ID)
			}
			rec, err := app.store.RoundRecord(g.ID, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s after round %d:\n", g.ID, r)
			for _, st := range rec.Standings {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-16s %6.1f pts  %12.0f revenue  %5.1f%% avg share\n",
					st.Rank, st.Team, st.Points, st.Revenue, st.AvgShare*100)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&round, "round", 0, "round to show (default: last resolved)")
	return cmd
}

func newGameResolveCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <game-id>",
		Short: "Resolve the open round from the stored submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			out, err := app.runner.ResolveCurrentRound(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "round %d resolved (seed %s)\n", out.Round, out.Audit.Seed)
			for _, line := range out.Summary {
				fmt.Fprintln(cmd.OutOrStdout(), "  "+line)
			}
			for _, w := range out.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "  warn %s: %s\n", w.Team, w.Message)
			}
			return nil
		},
	}
}

func newGameSubmissionsCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "submissions <game-id>",
		Short: "Show which teams have submitted for the open round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			g, err := app.store.Game(args[0])
			if err != nil {
				return err
			}
			subs, err := app.store.Submissions(g.ID, g.CurrentRound)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "round %d: %d submissions\n", g.CurrentRound, len(subs))
			for _, p := range game.PreviewSubmissions(subs) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %s\n", p.Team, strings.Join(p.Modules, ","))
			}
			return nil
		},
	}
}

func newGameEventCmd(cfg *config) *cobra.Command {
	var (
		round  int
		evType string
		title  string
		teams  []string
		demand map[string]string
		score  float64
		cost   float64
	)

	cmd := &cobra.Command{
		Use:   "event <game-id>",
		Short: "Schedule a facilitator event for a future round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			g, err := app.store.Game(args[0])
			if err != nil {
				return err
			}
			if round == 0 {
				round = g.CurrentRound
			}
			if round < g.CurrentRound {
				return fmt.Errorf("round %d is already resolved", round)
			}

			ev := engine.FacilitatorEvent{Type: evType, Title: title, ScoreMult: score, CostMult: cost}
			for _, t := range teams {
				ev.Teams = append(ev.Teams, engine.TeamID(t))
			}
			if len(demand) > 0 {
				ev.DemandMult = map[string]float64{}
				for seg, raw := range demand {
					f, err := strconv.ParseFloat(raw, 64)
					if err != nil {
						return fmt.Errorf("demand factor for %s: %w", seg, err)
					}
					ev.DemandMult[seg] = f
				}
			}
			if err := app.store.ScheduleEvent(g.ID, round, ev); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled %q for round %d\n", title, round)
			return nil
		},
	}

	cmd.Flags().IntVar(&round, "round", 0, "target round (default: the open round)")
	cmd.Flags().StringVar(&evType, "type", "market", "event type")
	cmd.Flags().StringVar(&title, "title", "", "headline shown to teams")
	cmd.Flags().StringArrayVar(&teams, "team", nil, "targeted team (repeatable; default: all)")
	cmd.Flags().StringToStringVar(&demand, "demand", nil, "segment demand factor, segment=factor")
	cmd.Flags().Float64Var(&score, "score-mult", 0, "composite score multiplier for targeted teams")
	cmd.Flags().Float64Var(&cost, "cost-mult", 0, "research cost multiplier for targeted teams")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
