package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gadgetwars",
		Short:         "Gadget Wars facilitator CLI: run games, resolve rounds, verify replays",
		Long:          "gadgetwars is the facilitator's tool for the Gadget Wars business simulation: create games, inject market events, resolve rounds from submitted decision sheets, and verify any past round against its audit trail.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cfg := loadConfig()
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "catalog config directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(cfg),
		newGameCmd(cfg),
		newReplayCmd(cfg),
		newCostsCmd(),
	)

	return rootCmd
}
