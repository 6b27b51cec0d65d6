package decode

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qubitrhythm/disensor/internal/geo"
)

// Command creates the decode command.
func Command() *cobra.Command {
	var (
		encode   bool
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "decode [location...]",
		Short: "Decode packed reading locations, or encode a coordinate with --encode",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if encode {
				if len(args) > 0 {
					return fmt.Errorf("--encode takes --lat and --lng, not arguments")
				}
				_, err := fmt.Fprintln(out, geo.Encode(geo.LatLng{Lat: lat, Lng: lng}))
				return err
			}

			if len(args) == 0 {
				return fmt.Errorf("at least one location is required")
			}
			failed := 0
			for _, loc := range args {
				ll, err := geo.Decode(loc)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s\t%v\n", loc, err)
					continue
				}
				fmt.Fprintf(out, "%s\t%.6f,%.6f\n", loc, ll.Lat, ll.Lng)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d locations not decodable", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&encode, "encode", false, "Encode --lat/--lng instead of decoding")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude in degrees")
	cmd.MarkFlagsRequiredTogether("encode", "lat", "lng")
	return cmd
}
