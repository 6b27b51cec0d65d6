// Package telemetry provides privacy-compliant error tracking
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/logging"
)

var log = logging.ForService("telemetry")

var sentryInitialized atomic.Bool

// flushTimeout bounds how long shutdown waits for queued events.
const flushTimeout = 2 * time.Second

// InitSentry initializes the Sentry SDK and installs it as the error reporter
// of internal/errors. Without a DSN reporting stays disabled.
func InitSentry(settings *conf.Settings) error {
	return initSentry(settings, nil)
}

func initSentry(settings *conf.Settings, transport sentry.Transport) error {
	sentrySettings := settings.Telemetry.Sentry
	if sentrySettings.DSN == "" && transport == nil {
		log.Info("sentry error reporting disabled, no dsn configured")
		errors.SetTelemetryReporter(nil)
		return nil
	}

	sampleRate := sentrySettings.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}
	environment := sentrySettings.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sentrySettings.DSN,
		Transport:        transport,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          fmt.Sprintf("disensor@%s", settings.Version),
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetContext("platform", map[string]any{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"go_version": runtime.Version(),
			"num_cpu":    runtime.NumCPU(),
		})
		scope.SetTag("backend", settings.Backend.Type)
	})

	sentryInitialized.Store(true)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("sentry error reporting enabled", "environment", environment, "sample_rate", sampleRate)
	return nil
}

// beforeSend strips host and user identification from every event.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// Flush waits for queued events and detaches the reporter. Call on shutdown.
func Flush() {
	if !sentryInitialized.Swap(false) {
		return
	}
	errors.SetTelemetryReporter(nil)
	if !sentry.Flush(flushTimeout) {
		log.Warn("sentry flush timed out", "timeout", flushTimeout)
	}
}
