//go:build ruleguard

// Package gorules holds ruleguard checks for disensor, run through golangci-lint's gocritic.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// EnhancedErrors flags plain errors.New(string) in the domain packages. Their
// errors go through internal/errors so they carry a component and category.
func EnhancedErrors(m dsl.Matcher) {
	m.Import("errors")
	m.Match(`errors.New($msg)`).
		Where(m["msg"].Type.Is("string") &&
			m.File().Imports("errors") &&
			m.File().PkgPath.Matches(`internal/(analysis|api|datastore|hexgrid|ledger|live|referral)$`)).
		Report("build domain errors with internal/errors: errors.Newf($msg).Component(...).Category(...).Build()")
}

// CoordinatorClock flags wall clock reads in the live coordinator, which must
// use Config.Now so tests control activity and view timestamps.
func CoordinatorClock(m dsl.Matcher) {
	m.Import("time")
	m.Match(`time.Now()`).
		Where(m.File().PkgPath.Matches(`internal/live$`)).
		Report("use the coordinator clock (c.now()) instead of time.Now()")
}

// ServiceLoggers flags ad hoc slog loggers. Packages log through
// logging.ForService so every record carries its service attribute.
func ServiceLoggers(m dsl.Matcher) {
	m.Import("log/slog")
	m.Match(`slog.Default()`, `slog.New($_)`).
		Where(!m.File().PkgPath.Matches(`internal/logging$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("use logging.ForService(name) instead of constructing slog loggers")
}

// WaitGroupGo suggests wg.Go for the Add(1) then goroutine pattern (Go 1.25+).
// Add inside a locked section followed by a later go statement is not matched.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("sync.WaitGroup") || m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done").
		Suggest("$wg.Go(func() { $body })")
}

// SortToSlices flags sort helpers replaced by the slices package.
func SortToSlices(m dsl.Matcher) {
	m.Match(`sort.Strings($s)`).Report("use slices.Sort($s)").Suggest("slices.Sort($s)")
	m.Match(`sort.Ints($s)`).Report("use slices.Sort($s)").Suggest("slices.Sort($s)")
	m.Match(`sort.Slice($s, $_)`).Report("use slices.SortFunc($s, ...) with a cmp function")
}

// FloatFormatting flags strconv float formatting of money amounts outside the
// ledger, which owns display rounding.
func FloatFormatting(m dsl.Matcher) {
	m.Match(`fmt.Sprintf("%.4f", $x)`, `strconv.FormatFloat($x, 'f', 4, 64)`).
		Where(!m.File().PkgPath.Matches(`internal/ledger$`)).
		Report("format amounts with ledger.FormatAmount($x, precision)")
}
