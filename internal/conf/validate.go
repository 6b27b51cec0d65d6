// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// Backend types
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendREST   = "rest"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateBackendSettings(&settings.Backend)...)
	ve.Errors = append(ve.Errors, validateHexGridSettings(&settings.HexGrid)...)
	ve.Errors = append(ve.Errors, validateLedgerSettings(&settings.Ledger)...)
	ve.Errors = append(ve.Errors, validateChangeStreamSettings(&settings.ChangeStream, &settings.MQTT)...)

	if settings.WebServer.Enabled && settings.WebServer.Listen == "" {
		ve.Errors = append(ve.Errors, "webserver.listen is required when the web server is enabled")
	}
	if settings.WebServer.RateLimit < 0 {
		ve.Errors = append(ve.Errors, "webserver.ratelimit must not be negative")
	}

	if settings.MQTT.Enabled {
		ve.Errors = append(ve.Errors, validateBrokerURL(settings.MQTT.Broker)...)
		if settings.MQTT.Topic == "" {
			ve.Errors = append(ve.Errors, "mqtt.topic is required when mqtt publishing is enabled")
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateBackendSettings(settings *BackendSettings) []string {
	var errs []string

	settings.Type = strings.ToLower(strings.TrimSpace(settings.Type))
	switch settings.Type {
	case BackendSQLite:
		if settings.SQLite.Path == "" {
			errs = append(errs, "backend.sqlite.path must not be empty")
		}
	case BackendMySQL:
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" {
			errs = append(errs, "backend.mysql.host and backend.mysql.database are required")
		}
	case BackendREST:
		u, err := url.Parse(settings.REST.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("backend.rest.url must be an absolute url, got %q", settings.REST.URL))
		}
		if settings.REST.APIKey == "" {
			errs = append(errs, "backend.rest.apikey is required for the rest backend")
		}
		if settings.REST.Timeout <= 0 {
			errs = append(errs, "backend.rest.timeout must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("backend.type must be one of %s, %s, %s, got %q",
			BackendSQLite, BackendMySQL, BackendREST, settings.Type))
	}

	return errs
}

func validateHexGridSettings(settings *HexGridSettings) []string {
	var errs []string

	if settings.Resolution < 0 || settings.Resolution > 15 {
		errs = append(errs, fmt.Sprintf("hexgrid.resolution must be between 0 and 15, got %d", settings.Resolution))
	}
	if settings.BatchLimit <= 0 {
		errs = append(errs, "hexgrid.batchlimit must be positive")
	}
	if settings.LiveWindow <= 0 {
		errs = append(errs, "hexgrid.livewindow must be positive")
	}
	if settings.CacheTTL < 0 {
		errs = append(errs, "hexgrid.cachettl must not be negative")
	}

	return errs
}

func validateLedgerSettings(settings *LedgerSettings) []string {
	var errs []string

	if settings.BaseRate < 0 {
		errs = append(errs, "ledger.baserate must not be negative")
	}
	if settings.BonusRate < 0 || settings.BonusRate > 1 {
		errs = append(errs, "ledger.bonusrate must be between 0 and 1")
	}
	if settings.Precision < 0 || settings.Precision > 12 {
		errs = append(errs, "ledger.precision must be between 0 and 12")
	}

	return errs
}

func validateChangeStreamSettings(settings *ChangeStreamSettings, mqtt *MQTTSettings) []string {
	var errs []string

	if settings.MQTT.Enabled {
		if settings.MQTT.Topic == "" {
			errs = append(errs, "changestream.mqtt.topic is required when the mqtt change stream is enabled")
		}
		errs = append(errs, validateBrokerURL(mqtt.Broker)...)
	}

	if settings.Kafka.Enabled {
		if len(settings.Kafka.Brokers) == 0 {
			errs = append(errs, "changestream.kafka.brokers must list at least one broker")
		}
		if settings.Kafka.Topic == "" || settings.Kafka.GroupID == "" {
			errs = append(errs, "changestream.kafka.topic and changestream.kafka.groupid are required")
		}
	}

	return errs
}

func validateBrokerURL(broker string) []string {
	u, err := url.Parse(broker)
	if err != nil || u.Host == "" {
		return []string{fmt.Sprintf("mqtt.broker must be a url like tcp://host:1883, got %q", broker)}
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
		return nil
	}
	return []string{fmt.Sprintf("mqtt.broker has unsupported scheme %q", u.Scheme)}
}
