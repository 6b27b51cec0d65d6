// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "disensor")
	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "logs/disensor.log")
	viper.SetDefault("main.log.level", "info")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("backend.type", "sqlite")
	viper.SetDefault("backend.sqlite.path", "disensor.db")
	viper.SetDefault("backend.mysql.host", "localhost")
	viper.SetDefault("backend.mysql.port", "3306")
	viper.SetDefault("backend.mysql.database", "disensor")
	viper.SetDefault("backend.rest.timeout", 10*time.Second)

	viper.SetDefault("changestream.mqtt.enabled", false)
	viper.SetDefault("changestream.mqtt.topic", "disensor/changes")
	viper.SetDefault("changestream.kafka.enabled", false)
	viper.SetDefault("changestream.kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("changestream.kafka.topic", "disensor.changes")
	viper.SetDefault("changestream.kafka.groupid", "disensor-coordinator")

	viper.SetDefault("hexgrid.resolution", 9)
	viper.SetDefault("hexgrid.batchlimit", 1000)
	viper.SetDefault("hexgrid.livewindow", 10*time.Minute)
	viper.SetDefault("hexgrid.noisythreshold", 50.0)
	viper.SetDefault("hexgrid.cachettl", 30*time.Second)

	viper.SetDefault("ledger.baserate", 0.001)
	viper.SetDefault("ledger.bonusrate", 0.10)
	viper.SetDefault("ledger.precision", 4)

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.ratelimit", 20.0)
	viper.SetDefault("webserver.burst", 40)
	viper.SetDefault("webserver.log.enabled", false)
	viper.SetDefault("webserver.log.path", "logs/webserver.log")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "disensor/leaderboard")
	viper.SetDefault("mqtt.retain", true)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.listen", "")
	viper.SetDefault("telemetry.sentry.environment", "production")
	viper.SetDefault("telemetry.sentry.samplerate", 1.0)
}
