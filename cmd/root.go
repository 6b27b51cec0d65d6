package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qubitrhythm/disensor/cmd/config"
	"github.com/qubitrhythm/disensor/cmd/decode"
	"github.com/qubitrhythm/disensor/cmd/hexmap"
	"github.com/qubitrhythm/disensor/cmd/leaderboard"
	"github.com/qubitrhythm/disensor/cmd/realtime"
	"github.com/qubitrhythm/disensor/cmd/stats"
	"github.com/qubitrhythm/disensor/internal/analysis"
	"github.com/qubitrhythm/disensor/internal/buildinfo"
	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/logging"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs, so subcommands must only read it in RunE.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "disensor",
		Short:         "DiSensor network dashboard service",
		Version:       build.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logging.Warn("failed to bind debug flag", "error", err)
	}

	decodeCmd := decode.Command()
	rootCmd.AddCommand(
		realtime.Command(settings),
		leaderboard.Command(settings),
		hexmap.Command(settings),
		stats.Command(settings),
		config.Command(settings),
		decodeCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !needsConfig(cmd, decodeCmd) {
			return nil
		}
		return initialize(configFile, settings, build)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if err := analysis.CloseLogger(); err != nil {
			logging.Warn("failed to close log file", "error", err)
		}
	}

	return rootCmd
}

// needsConfig reports whether cmd reads settings. decode, help and shell
// completion must work without a config file.
func needsConfig(cmd, decodeCmd *cobra.Command) bool {
	if cmd == decodeCmd || cmd.Name() == "help" {
		return false
	}
	if p := cmd.Parent(); p != nil && p.Name() == "completion" {
		return false
	}
	return cmd.Name() != "completion"
}

// initialize loads the configuration, with flags bound into viper taking
// precedence, and applies the logging settings.
func initialize(configFile string, settings *conf.Settings, build *buildinfo.Context) error {
	if configFile != "" {
		viper.Set("config", configFile)
	}

	loaded, err := conf.Load()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	build.Apply(loaded)
	*settings = *loaded

	level := logging.ParseLevel(settings.Main.Log.Level)
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.SetLevel(level)
	analysis.InitLogger(settings)
	return nil
}
