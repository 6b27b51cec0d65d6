package realtime

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qubitrhythm/disensor/internal/analysis"
	"github.com/qubitrhythm/disensor/internal/conf"
)

// Command creates the realtime command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Run the live dashboard service",
		Long: "Load the backend snapshot, follow the change stream and serve the live leaderboard, " +
			"hex map and dashboard stats until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Realtime(cmd.Context(), settings)
		},
	}

	cmd.Flags().String("listen", "", "Listen address of the API server")
	cmd.Flags().Bool("telemetry", false, "Enable the Prometheus metrics endpoint")
	cmd.Flags().String("metrics-listen", "", "Separate listen address for /metrics")
	cmd.Flags().Bool("mqtt", false, "Publish the leaderboard to the MQTT broker")

	bindFlags(cmd, map[string]string{
		"listen":         "webserver.listen",
		"telemetry":      "telemetry.enabled",
		"metrics-listen": "telemetry.listen",
		"mqtt":           "mqtt.enabled",
	})
	return cmd
}

// bindFlags binds flags to viper keys. Binding only overrides the config
// when the flag is actually set on the command line.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			analysis.GetLogger().Warn("failed to bind flag", "flag", flag, "error", err)
		}
	}
}
