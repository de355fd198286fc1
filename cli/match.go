package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cgtTracker/internal/domain"
)

func (c *CLI) matchCmd() *cobra.Command {
	var (
		strategyName string
		confirm      bool
	)

	cmd := &cobra.Command{
		Use:   "match <sell-transaction-id>",
		Short: "Match a sell transaction against available parcels",
		Long: `Proposes an allocation of the sell quantity across available parcels using
the chosen strategy and prints the per-parcel CGT breakdown. Nothing is written
unless --confirm is given, in which case the proposal is committed atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid sell transaction ID %q", args[0])
			}
			strategy, err := domain.ParseStrategy(strategyName)
			if err != nil {
				return err
			}
			if strategy == domain.Manual {
				return fmt.Errorf("manual strategy is not available from the command line")
			}

			ctx := cmd.Context()
			sell, err := c.transactions.FindByID(ctx, sellID)
			if err != nil {
				return err
			}
			if sell == nil {
				return fmt.Errorf("transaction %d not found", sellID)
			}

			proposed, err := c.matcher.Allocate(ctx, sell, strategy, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Proposed allocation for sell %d (%s, %s units):\n",
				sellID, strategy, sell.Quantity)
			for _, pa := range proposed {
				fmt.Fprintf(out, "  parcel %d acquired %s: %s units, cost base %s, proceeds %s, gain/loss %s, net %s\n",
					pa.Parcel.ID,
					pa.Parcel.AcquisitionDate.Format("2006-01-02"),
					pa.MatchedQuantity,
					aud(pa.CostBase), aud(pa.Proceeds), aud(pa.GainLoss), aud(pa.NetGain))
			}

			if !confirm {
				fmt.Fprintln(out, "Preview only; re-run with --confirm to commit.")
				return nil
			}

			committed, err := c.matcher.Commit(ctx, sell, proposed)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Committed %d allocation(s).\n", len(committed))
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", "earliest-first",
		"matching strategy: earliest-first, latest-first or highest-cost-first")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "commit the proposed allocation")
	return cmd
}
