package hexmap

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/qubitrhythm/disensor/internal/analysis"
	"github.com/qubitrhythm/disensor/internal/conf"
)

// Command creates the hexmap command.
func Command(settings *conf.Settings) *cobra.Command {
	var limit, resolution int

	cmd := &cobra.Command{
		Use:   "hexmap",
		Short: "Aggregate recent readings into hex cells and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hm, err := analysis.HexMap(cmd.Context(), settings, limit, resolution)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(hm)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Most recent readings to aggregate (default hexgrid.batchlimit)")
	cmd.Flags().IntVar(&resolution, "resolution", 0, "H3 resolution 0-15 (default hexgrid.resolution)")
	return cmd
}
