package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qubitrhythm/disensor/internal/errors"
	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/ledger"
	"github.com/qubitrhythm/disensor/internal/live"
)

const notReadyMessage = "live view not ready yet"

// LeaderboardResponse is the leaderboard with display amounts.
type LeaderboardResponse struct {
	Trigger     events.Trigger      `json:"trigger"`
	GeneratedAt time.Time           `json:"generated_at"`
	Precision   int                 `json:"precision"`
	Stats       live.Stats          `json:"stats"`
	Leaderboard []ledger.DisplayRow `json:"leaderboard"`
}

func newLeaderboardResponse(view live.View) LeaderboardResponse {
	return LeaderboardResponse{
		Trigger:     view.Trigger,
		GeneratedAt: view.GeneratedAt,
		Precision:   view.Precision,
		Stats:       view.Stats,
		Leaderboard: view.DisplayRows(),
	}
}

// EarningsResponse is one node's earnings. Amounts are display strings,
// the raw values keep full precision.
type EarningsResponse struct {
	ledger.DisplayRow
	Raw struct {
		Base  float64 `json:"base"`
		Bonus float64 `json:"bonus"`
		Total float64 `json:"total"`
	} `json:"raw"`
}

func (s *Server) currentView(c echo.Context) (live.View, bool, error) {
	view, ok := s.views.Current()
	if !ok {
		return view, false, s.respondError(c, nil, notReadyMessage, http.StatusServiceUnavailable)
	}
	return view, true, nil
}

// getLeaderboard handles GET /api/v1/leaderboard.
func (s *Server) getLeaderboard(c echo.Context) error {
	view, ok, err := s.currentView(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, newLeaderboardResponse(view))
}

// getNodeEarnings handles GET /api/v1/nodes/:id/earnings.
func (s *Server) getNodeEarnings(c echo.Context) error {
	view, ok, err := s.currentView(c)
	if !ok {
		return err
	}

	id := c.Param("id")
	row, found := view.Row(id)
	if !found {
		return s.respondError(c, nil, "unknown node "+strconv.Quote(id), http.StatusNotFound)
	}

	resp := EarningsResponse{DisplayRow: row.Display(view.Precision)}
	resp.Raw.Base = row.Base
	resp.Raw.Bonus = row.Bonus
	resp.Raw.Total = row.Total
	return c.JSON(http.StatusOK, resp)
}

// getStats handles GET /api/v1/stats.
func (s *Server) getStats(c echo.Context) error {
	view, ok, err := s.currentView(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, view.Stats)
}

// getActivity handles GET /api/v1/activity, newest first.
func (s *Server) getActivity(c echo.Context) error {
	view, ok, err := s.currentView(c)
	if !ok {
		return err
	}
	activity := view.Activity
	if activity == nil {
		activity = []live.ActivityEntry{}
	}
	return c.JSON(http.StatusOK, activity)
}

// getHexMap handles GET /api/v1/hexmap?limit=&resolution=.
func (s *Server) getHexMap(c echo.Context) error {
	if s.hexmap == nil {
		return s.respondError(c, nil, "hex map not configured", http.StatusServiceUnavailable)
	}

	limit, err := intParam(c, "limit")
	if err != nil {
		return s.respondError(c, err, "limit must be an integer", http.StatusBadRequest)
	}
	resolution, err := intParam(c, "resolution")
	if err != nil {
		return s.respondError(c, err, "resolution must be an integer", http.StatusBadRequest)
	}

	hm, err := s.hexmap.Get(c.Request().Context(), limit, resolution)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, hm)
	case errors.IsCategory(err, errors.CategoryValidation):
		return s.respondError(c, err, "invalid hex map parameters", http.StatusBadRequest)
	default:
		return s.respondError(c, err, "readings backend unavailable", http.StatusServiceUnavailable)
	}
}

// serveLive handles GET /api/v1/live.
func (s *Server) serveLive(c echo.Context) error {
	var initial *live.View
	if view, ok := s.views.Current(); ok {
		initial = &view
	}
	return s.hub.Serve(c, initial)
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(c echo.Context) error {
	_, ready := s.views.Current()
	return c.JSON(http.StatusOK, map[string]any{
		"status":       "healthy",
		"version":      s.settings.Version,
		"build_date":   s.settings.BuildDate,
		"uptime":       time.Since(s.startTime).Round(time.Second).String(),
		"timestamp":    time.Now().Format(time.RFC3339),
		"live_ready":   ready,
		"live_clients": s.hub.Len(),
	})
}

// intParam reads an optional integer query parameter; absent is zero.
func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
