// Package cli wires the matching, forecasting, reporting and import services
// into a cobra command tree. Presentation only; no tax rules live here.
package cli

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cgtTracker/internal/app"
	"cgtTracker/internal/ports"
)

// CLI holds the wired services the commands run against.
type CLI struct {
	logger       ports.Logger
	securities   ports.SecurityRepository
	transactions ports.TransactionRepository
	matcher      *app.MatchingService
	forecaster   *app.ForecastService
	reporter     *app.ReportingService
	importer     *app.ImportService
}

// New creates the command-line interface over the wired services.
func New(
	logger ports.Logger,
	securities ports.SecurityRepository,
	transactions ports.TransactionRepository,
	matcher *app.MatchingService,
	forecaster *app.ForecastService,
	reporter *app.ReportingService,
	importer *app.ImportService,
) *CLI {
	return &CLI{
		logger:       logger,
		securities:   securities,
		transactions: transactions,
		matcher:      matcher,
		forecaster:   forecaster,
		reporter:     reporter,
		importer:     importer,
	}
}

// Execute runs the root command.
func (c *CLI) Execute() error {
	root := &cobra.Command{
		Use:           "cgt-tracker",
		Short:         "Track security trades and compute Australian CGT outcomes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		c.importCmd(),
		c.matchCmd(),
		c.forecastCmd(),
		c.reportCmd(),
	)
	return root.Execute()
}

// aud renders a decimal AUD amount for display, e.g. "$2,004.75".
func aud(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0).IntPart()
	return money.New(cents, money.AUD).Display()
}
