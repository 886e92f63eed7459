package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gadgetwars.ai/internal/sim/logistics"
	"gadgetwars.ai/internal/sim/tariffs"
)

func newCostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Price shipping lanes and import duties for team bookkeeping",
	}
	cmd.AddCommand(newCostsShippingCmd(), newCostsTariffCmd())
	return cmd
}

func newCostsShippingCmd() *cobra.Command {
	var (
		origin, dest, method string
		weight, volume       float64
	)

	cmd := &cobra.Command{
		Use:   "shipping",
		Short: "Quote a component shipment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := logistics.QuoteShipment(
				logistics.Region(origin), logistics.Region(dest),
				logistics.Method(method), weight, volume)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cost %.2f, lead %d rounds, reliability %.3f\n",
				q.Cost, q.LeadTimeRounds, q.Reliability)
			return nil
		},
	}

	cmd.Flags().StringVar(&origin, "from", "", "origin region (asia, europe, americas)")
	cmd.Flags().StringVar(&dest, "to", "", "destination region")
	cmd.Flags().StringVar(&method, "method", string(logistics.MethodSea), "shipping method (sea, air, express)")
	cmd.Flags().Float64Var(&weight, "kg", 0, "shipment weight in kg")
	cmd.Flags().Float64Var(&volume, "m3", 0, "shipment volume in cubic meters")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newCostsTariffCmd() *cobra.Command {
	var (
		origin, dest, material string
		cost                   float64
		round                  int
	)

	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Compute the import duty on a cross-region purchase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			duty, err := tariffs.Amount(
				logistics.Region(origin), logistics.Region(dest),
				tariffs.Material(material), cost, round)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "duty %.2f on %.2f\n", duty, cost)
			return nil
		},
	}

	cmd.Flags().StringVar(&origin, "from", "", "origin region")
	cmd.Flags().StringVar(&dest, "to", "", "destination region")
	cmd.Flags().StringVar(&material, "material", string(tariffs.MaterialElectronics), "material type")
	cmd.Flags().Float64Var(&cost, "cost", 0, "declared cost")
	cmd.Flags().IntVar(&round, "round", 1, "game round")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
