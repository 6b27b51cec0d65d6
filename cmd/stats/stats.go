package stats

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qubitrhythm/disensor/internal/analysis"
	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/ledger"
)

// Command creates the stats command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print network totals and the estimated market value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := analysis.Snapshot(cmd.Context(), settings)
			if err != nil {
				return err
			}
			s := view.Stats
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total readings: %d\n", s.TotalReadings)
			fmt.Fprintf(out, "Total nodes:    %d\n", s.TotalNodes)
			fmt.Fprintf(out, "Referrals:      %d\n", s.GraphEdges)
			fmt.Fprintf(out, "Market value:   %s\n", ledger.FormatAmount(s.MarketValue, view.Precision))
			return nil
		},
	}
}
