package analysis

import (
	"context"
	"fmt"

	"github.com/qubitrhythm/disensor/internal/api"
	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/datastore"
	"github.com/qubitrhythm/disensor/internal/ledger"
	"github.com/qubitrhythm/disensor/internal/live"
)

// openStore builds and opens the configured backend.
func openStore(settings *conf.Settings, opts ...datastore.Option) (datastore.Interface, error) {
	store, err := datastore.New(settings, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", store.Backend(), err)
	}
	return store, nil
}

// closeStore closes the backend and logs the result.
func closeStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		GetLogger().Warn("failed to close datastore", "backend", store.Backend(), "error", err)
		return
	}
	GetLogger().Debug("datastore closed", "backend", store.Backend())
}

// coordinatorConfig maps the ledger settings onto a coordinator config.
func coordinatorConfig(settings *conf.Settings) live.Config {
	rates := ledger.DefaultRates()
	if settings.Ledger.BaseRate > 0 {
		rates.Base = settings.Ledger.BaseRate
	}
	if settings.Ledger.BonusRate > 0 {
		rates.Bonus = settings.Ledger.BonusRate
	}
	return live.Config{
		Rates:     rates,
		Precision: settings.Ledger.Precision,
		Logger:    GetLogger(),
	}
}

// Snapshot loads the backend once and returns the resulting view. A partial
// load still returns the view together with the error.
func Snapshot(ctx context.Context, settings *conf.Settings) (live.View, error) {
	store, err := openStore(settings)
	if err != nil {
		return live.View{}, err
	}
	defer closeStore(store)

	return SnapshotFrom(ctx, store, settings)
}

// SnapshotFrom is Snapshot over an already open backend.
func SnapshotFrom(ctx context.Context, backend live.Backend, settings *conf.Settings) (live.View, error) {
	return live.New(backend, coordinatorConfig(settings)).LoadSnapshot(ctx)
}

// HexMap aggregates the most recent readings once. Zero limit and
// resolution select the configured defaults.
func HexMap(ctx context.Context, settings *conf.Settings, limit, resolution int) (*api.HexMap, error) {
	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}
	defer closeStore(store)

	return HexMapFrom(ctx, store, settings, limit, resolution)
}

// HexMapFrom is HexMap over an already open backend.
func HexMapFrom(ctx context.Context, source api.ReadingSource, settings *conf.Settings, limit, resolution int) (*api.HexMap, error) {
	builder := api.NewHexMapBuilder(source, api.HexMapConfigFromSettings(settings.HexGrid), nil)
	limit, resolution, err := builder.Normalize(limit, resolution)
	if err != nil {
		return nil, err
	}
	return builder.Build(ctx, limit, resolution)
}
