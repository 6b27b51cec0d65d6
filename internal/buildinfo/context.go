// Package buildinfo carries build-time metadata kept apart from user configuration.
package buildinfo

import (
	"runtime/debug"

	"github.com/qubitrhythm/disensor/internal/conf"
)

// UnknownValue is reported for metadata the build did not provide.
const UnknownValue = "unknown"

// Context holds values injected with -ldflags at build time.
type Context struct {
	Version   string
	BuildDate string
}

// NewContext returns a context for the given build values.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version, falling back to the module version
// recorded by the go tool for `go install` builds.
func (c *Context) GetVersion() string {
	if c != nil && c.Version != "" {
		return c.Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return UnknownValue
}

// GetBuildDate returns the build date.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Apply copies the build values into the runtime-only settings fields.
func (c *Context) Apply(settings *conf.Settings) {
	settings.Version = c.GetVersion()
	settings.BuildDate = c.GetBuildDate()
}
