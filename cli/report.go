package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func (c *CLI) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <year>",
		Short: "Summarize committed allocations for a financial year",
		Long: `Aggregates committed allocations for an Australian financial year. The year
is the ending year: 2025 means FY2024-25, Jul 1 2024 through Jun 30 2025.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}

			summary, err := c.reporter.Summarize(cmd.Context(), year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s to %s): %d match(es)\n",
				summary.Label,
				summary.Start.Format("2006-01-02"), summary.End.Format("2006-01-02"),
				summary.MatchCount)
			fmt.Fprintf(out, "  gains %s, losses %s, discounts %s, net capital gain %s\n",
				aud(summary.Gains), aud(summary.Losses), aud(summary.Discounts), aud(summary.NetGain))
			for _, sec := range summary.PerSecurity {
				fmt.Fprintf(out, "  %-12s gains %s, losses %s, net %s (%d match(es))\n",
					sec.Ticker, aud(sec.Gains), aud(sec.Losses), aud(sec.Net), sec.MatchCount)
			}
			return nil
		},
	}
}
