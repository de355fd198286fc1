package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *CLI) forecastCmd() *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "forecast <ticker> <quantity> <price>",
		Short: "Compare CGT outcomes of a hypothetical sell across strategies",
		Long: `Simulates selling the given quantity at the given AUD price and prints the
earliest-first, latest-first and highest-cost-first outcomes side by side.
Nothing is written.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := strings.ToUpper(args[0])
			quantity, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			price, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid price %q", args[2])
			}

			sellDate := time.Now().UTC().Truncate(24 * time.Hour)
			if dateStr != "" {
				sellDate, err = time.ParseInLocation("2006-01-02", dateStr, time.UTC)
				if err != nil {
					return fmt.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
				}
			}

			ctx := cmd.Context()
			security, err := c.securities.FindByTicker(ctx, ticker)
			if err != nil {
				return err
			}
			if security == nil {
				return fmt.Errorf("security %s not found", ticker)
			}

			report, err := c.forecaster.Forecast(ctx, security, quantity, price, sellDate)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Forecast: sell %s %s at %s on %s\n",
				report.Quantity, report.Ticker, aud(report.SellPrice), report.SellDate.Format("2006-01-02"))
			for _, r := range report.Results() {
				fmt.Fprintf(out, "%-20s cost base %s, proceeds %s, gain/loss %s, discount %s, net gain %s (%d parcel(s))\n",
					r.Strategy.String()+":",
					aud(r.TotalCostBase), aud(r.TotalProceeds), aud(r.TotalGainLoss),
					aud(r.TotalDiscount), aud(r.TotalNetGain), len(r.Allocations))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "hypothetical sell date (YYYY-MM-DD, default today)")
	return cmd
}
