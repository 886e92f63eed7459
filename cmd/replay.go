package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gadgetwars.ai/internal/persistence/store"
)

func newReplayCmd(cfg *config) *cobra.Command {
	var from, to int

	cmd := &cobra.Command{
		Use:   "replay <game-id>",
		Short: "Re-resolve recorded rounds and verify them against the audit trail",
		Long:  "replay re-runs each resolved round from the stored submissions and the recorded seed, then compares every digest in the audit trail. A mismatch means the stored history does not reproduce and should be disputed.",
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
			last := g.CurrentRound - 1
			if g.Status == store.GameComplete {
				last = g.MaxRounds
			}
			if from < 1 {
				from = 1
			}
			if to == 0 || to > last {
				to = last
			}
			if to < from {
				return fmt.Errorf("game %s has no resolved rounds in [%d,%d]", g.ID, from, to)
			}

			failed := 0
			for r := from; r <= to; r++ {
				if _, err := app.runner.ReplayRound(g.ID, r); err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "round %3d: MISMATCH: %v\n", r, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "round %3d: ok\n", r)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rounds failed verification", failed, to-from+1)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rounds verified\n", to-from+1)
			return nil
		},
	}

	cmd.Flags().IntVar(&from, "from", 1, "first round to verify")
	cmd.Flags().IntVar(&to, "to", 0, "last round to verify (default: last resolved)")
	return cmd
}
