// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, DISENSOR_BACKEND_TYPE etc.
const EnvPrefix = "DISENSOR"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the explicitly validated environment variables.
// Every other key is still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "DISENSOR_DEBUG", validateEnvBool},
		{"backend.type", "DISENSOR_BACKEND_TYPE", validateEnvBackendType},
		{"backend.rest.url", "DISENSOR_BACKEND_REST_URL", validateEnvURL},
		{"backend.rest.apikey", "DISENSOR_BACKEND_REST_APIKEY", nil},
		{"backend.mysql.password", "DISENSOR_BACKEND_MYSQL_PASSWORD", nil},
		{"hexgrid.resolution", "DISENSOR_HEXGRID_RESOLUTION", validateEnvResolution},
		{"mqtt.password", "DISENSOR_MQTT_PASSWORD", nil},
		{"telemetry.sentry.dsn", "DISENSOR_TELEMETRY_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvBackendType(value string) error {
	switch strings.ToLower(value) {
	case BackendSQLite, BackendMySQL, BackendREST:
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", BackendSQLite, BackendMySQL, BackendREST)
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute url")
	}
	return nil
}

func validateEnvResolution(value string) error {
	res, err := strconv.Atoi(value)
	if err != nil || res < 0 || res > 15 {
		return fmt.Errorf("must be an integer between 0 and 15")
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	return bindEnvVars()
}
