package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/qubitrhythm/disensor/internal/conf"
)

const redacted = "[REDACTED]"

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or write it back with --write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if write {
				if err := conf.SaveSettings(); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Configuration written to", viper.ConfigFileUsed())
				return err
			}

			data, err := yaml.Marshal(redact(*settings))
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Write the effective configuration to the config file")
	return cmd
}

// redact masks credentials on a copy of the settings.
func redact(s conf.Settings) conf.Settings {
	mask := func(v *string) {
		if *v != "" {
			*v = redacted
		}
	}
	mask(&s.Backend.MySQL.Password)
	mask(&s.Backend.REST.APIKey)
	mask(&s.MQTT.Password)
	mask(&s.Telemetry.Sentry.DSN)
	return s
}
