package leaderboard

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qubitrhythm/disensor/internal/analysis"
	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/live"
)

// Command creates the leaderboard command.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the current leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := analysis.Snapshot(cmd.Context(), settings)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			return writeTable(cmd.OutOrStdout(), view)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func writeJSON(w io.Writer, view live.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Stats       live.Stats `json:"stats"`
		Leaderboard any        `json:"leaderboard"`
	}{view.Stats, view.DisplayRows()})
}

func writeTable(w io.Writer, view live.View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "RANK\tNODE\tPULSES\tBASE\tBONUS\tTOTAL\t")
	for _, r := range view.DisplayRows() {
		id := r.ID
		if r.IsInviter {
			id += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t\n", r.Rank, id, r.Pulses, r.Base, r.Bonus, r.Total)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d nodes, %d readings, * = inviter\n", view.Stats.TotalNodes, view.Stats.TotalReadings)
	return err
}
