package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/datastore"
	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/hexgrid"
)

const (
	// MaxResolution is the finest H3 resolution.
	MaxResolution = 15
	// DefaultBatchLimit bounds the readings aggregated per build.
	DefaultBatchLimit = 1000
	// DefaultCacheTTL is how long a built map is served without rebuilding.
	DefaultCacheTTL = 30 * time.Second

	staleKeyPrefix = "stale/"
)

// ReadingSource supplies the most recent readings, newest first.
type ReadingSource interface {
	GetRecentReadings(ctx context.Context, limit int) ([]datastore.Reading, error)
}

// BuildObserver receives one observation per aggregation pass.
type BuildObserver interface {
	ObserveBuild(elapsed time.Duration, skipped int, cellsByTier map[string]int)
}

// HexMap is the rendered spatial view of recent readings.
type HexMap struct {
	Resolution  int                  `json:"resolution"`
	Readings    int                  `json:"readings"`
	Skipped     int                  `json:"skipped"`
	Polygons    []hexgrid.Polygon    `json:"polygons"`
	Live        []hexgrid.LivePoint  `json:"live"`
	Bounds      *hexgrid.Bounds      `json:"bounds"`
	TierCounts  map[hexgrid.Tier]int `json:"tier_counts"`
	GeneratedAt time.Time            `json:"generated_at"`
	Stale       bool                 `json:"stale"`
}

// HexMapConfig configures a HexMapBuilder.
type HexMapConfig struct {
	Resolution     int
	BatchLimit     int
	LiveWindow     time.Duration
	NoisyThreshold float64
	CacheTTL       time.Duration
	Now            func() time.Time
}

// HexMapConfigFromSettings maps the hexgrid settings, falling back to defaults for zero values.
func HexMapConfigFromSettings(s conf.HexGridSettings) HexMapConfig {
	cfg := HexMapConfig{
		Resolution:     s.Resolution,
		BatchLimit:     s.BatchLimit,
		LiveWindow:     s.LiveWindow,
		NoisyThreshold: s.NoisyThreshold,
		CacheTTL:       s.CacheTTL,
	}
	if cfg.Resolution <= 0 || cfg.Resolution > MaxResolution {
		cfg.Resolution = hexgrid.DefaultResolution
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	if cfg.LiveWindow <= 0 {
		cfg.LiveWindow = hexgrid.DefaultLiveWindow
	}
	if cfg.NoisyThreshold <= 0 {
		cfg.NoisyThreshold = hexgrid.DefaultNoisyThreshold
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return cfg
}

// HexMapBuilder fetches recent readings and aggregates them into a HexMap,
// caching results per limit and resolution.
type HexMapBuilder struct {
	source   ReadingSource
	cfg      HexMapConfig
	cache    *cache.Cache
	observer BuildObserver

	// Serializes rebuilds so concurrent misses hit the backend once.
	buildMu sync.Mutex
}

// NewHexMapBuilder creates a builder. observer may be nil.
func NewHexMapBuilder(source ReadingSource, cfg HexMapConfig, observer BuildObserver) *HexMapBuilder {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	return &HexMapBuilder{
		source:   source,
		cfg:      cfg,
		cache:    cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		observer: observer,
	}
}

// Config returns the effective configuration.
func (b *HexMapBuilder) Config() HexMapConfig {
	return b.cfg
}

// Normalize clamps limit to (0, BatchLimit] and defaults a zero resolution.
// A resolution outside 0..MaxResolution is a validation error.
func (b *HexMapBuilder) Normalize(limit, resolution int) (int, int, error) {
	if limit <= 0 || limit > b.cfg.BatchLimit {
		limit = b.cfg.BatchLimit
	}
	if resolution == 0 {
		resolution = b.cfg.Resolution
	}
	if resolution < 0 || resolution > MaxResolution {
		return 0, 0, errors.Newf("resolution %d out of range 0..%d", resolution, MaxResolution).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return limit, resolution, nil
}

// Get returns a cached map when fresh. Otherwise it rebuilds, and when the
// rebuild fails it serves the last good map for the same key marked stale.
// Without one the rebuild error is returned.
func (b *HexMapBuilder) Get(ctx context.Context, limit, resolution int) (*HexMap, error) {
	limit, resolution, err := b.Normalize(limit, resolution)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d/%d", resolution, limit)

	if hm, ok := b.cached(key); ok {
		return hm, nil
	}

	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	if hm, ok := b.cached(key); ok {
		return hm, nil
	}

	hm, err := b.Build(ctx, limit, resolution)
	if err != nil {
		if v, ok := b.cache.Get(staleKeyPrefix + key); ok {
			stale := *v.(*HexMap)
			stale.Stale = true
			log.Warn("serving stale hex map", "key", key, "error", err)
			return &stale, nil
		}
		return nil, err
	}

	b.cache.Set(key, hm, cache.DefaultExpiration)
	b.cache.Set(staleKeyPrefix+key, hm, cache.NoExpiration)
	return hm, nil
}

func (b *HexMapBuilder) cached(key string) (*HexMap, bool) {
	v, ok := b.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*HexMap), true
}

// Build fetches and aggregates without touching the cache.
func (b *HexMapBuilder) Build(ctx context.Context, limit, resolution int) (*HexMap, error) {
	rows, err := b.source.GetRecentReadings(ctx, limit)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	readings := make([]hexgrid.Reading, len(rows))
	for i, r := range rows {
		readings[i] = hexgrid.Reading{
			NodeID:      r.NodeID,
			Location:    r.Location,
			DecibelDB:   r.DecibelDB,
			PressureHpa: r.PressureHpa,
			Timestamp:   r.Timestamp,
		}
	}

	agg := &hexgrid.Aggregator{
		Resolution:     resolution,
		LiveWindow:     b.cfg.LiveWindow,
		NoisyThreshold: b.cfg.NoisyThreshold,
		Now:            b.cfg.Now,
	}
	res := agg.Aggregate(readings)

	hm := &HexMap{
		Resolution:  resolution,
		Readings:    len(rows),
		Skipped:     res.Skipped,
		Polygons:    res.Polygons(),
		Live:        res.Live,
		Bounds:      res.Bounds,
		TierCounts:  res.TierCounts(),
		GeneratedAt: b.now(),
	}
	if hm.Live == nil {
		hm.Live = []hexgrid.LivePoint{}
	}

	if b.observer != nil {
		tiers := make(map[string]int, len(hm.TierCounts))
		for tier, n := range hm.TierCounts {
			tiers[string(tier)] = n
		}
		b.observer.ObserveBuild(time.Since(start), res.Skipped, tiers)
	}
	if res.Skipped > 0 {
		log.Debug("hex map skipped readings", "skipped", res.Skipped, "total", len(rows))
	}
	return hm, nil
}

func (b *HexMapBuilder) now() time.Time {
	if b.cfg.Now != nil {
		return b.cfg.Now()
	}
	return time.Now()
}
