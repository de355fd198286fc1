package cli

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cgtTracker/internal/app"
	"cgtTracker/internal/domain"
)

func (c *CLI) importCmd() *cobra.Command {
	var (
		confirm      bool
		mappingPairs []string
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import trades from a broker CSV export",
		Long: `Parses a CSV export, creating transactions and (for buys) cost-basis parcels.
SelfWealth exports are detected automatically; other formats need an explicit
column mapping via --map "CSV Column=field" pairs. Without --confirm the file is
only previewed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			mapping, source, err := resolveMapping(string(content), mappingPairs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			preview, err := c.importer.Preview(ctx, strings.NewReader(string(content)), mapping)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d valid, %d with errors, %d duplicate(s), %d new\n",
				filepath.Base(path), preview.ValidCount, preview.ErrorCount,
				preview.DuplicateCount, preview.NewCount)
			for _, row := range preview.Rows {
				if !row.IsValid() {
					fmt.Fprintf(out, "  row %d skipped: %s\n", row.RowNumber, strings.Join(row.Errors, "; "))
				}
			}

			if !confirm {
				fmt.Fprintln(out, "Preview only; re-run with --confirm to import.")
				return nil
			}

			record, err := c.importer.Confirm(ctx, strings.NewReader(string(content)), mapping, filepath.Base(path), source)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Imported %d row(s) (batch %d).\n", record.RowCount, record.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "create the transactions and parcels")
	cmd.Flags().StringArrayVar(&mappingPairs, "map", nil,
		`column mapping for generic CSVs, e.g. --map "Date=trade_date" --map "Side=transaction_type"`)
	return cmd
}

// resolveMapping picks the SelfWealth auto-mapping when the headers match it,
// otherwise builds a generic mapping from the --map pairs.
func resolveMapping(content string, pairs []string) (map[string]string, domain.ImportSource, error) {
	if len(pairs) > 0 {
		mapping := make(map[string]string, len(pairs))
		for _, pair := range pairs {
			col, field, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, "", fmt.Errorf("invalid --map pair %q, want \"CSV Column=field\"", pair)
			}
			mapping[strings.TrimSpace(col)] = strings.TrimSpace(field)
		}
		return mapping, domain.SourceGeneric, nil
	}

	reader := csv.NewReader(strings.NewReader(content))
	headers, err := reader.Read()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read CSV headers: %w", err)
	}
	if app.DetectSelfWealth(headers) {
		return app.SelfWealthMapping(), domain.SourceSelfWealth, nil
	}
	return nil, "", fmt.Errorf("unrecognised CSV format; supply --map pairs for the columns")
}
