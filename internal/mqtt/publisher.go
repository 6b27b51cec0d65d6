package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/ledger"
	"github.com/qubitrhythm/disensor/internal/live"
)

// LeaderboardMessage is the payload published after every recompute.
type LeaderboardMessage struct {
	Trigger     events.Trigger      `json:"trigger"`
	GeneratedAt time.Time           `json:"generated_at"`
	Stats       live.Stats          `json:"stats"`
	Leaderboard []ledger.DisplayRow `json:"leaderboard"`
}

// LeaderboardPublisher renders views to an MQTT topic.
type LeaderboardPublisher struct {
	client Client
	topic  string
}

// NewLeaderboardPublisher publishes to topic through client.
func NewLeaderboardPublisher(client Client, topic string) *LeaderboardPublisher {
	return &LeaderboardPublisher{client: client, topic: topic}
}

// Render publishes view. While the broker is unreachable views are skipped;
// the next render after reconnecting carries the complete state anyway.
func (p *LeaderboardPublisher) Render(ctx context.Context, view live.View) error {
	if !p.client.IsConnected() {
		mqttLogger.Debug("broker not connected, leaderboard not published", "trigger", view.Trigger)
		return nil
	}

	payload, err := json.Marshal(LeaderboardMessage{
		Trigger:     view.Trigger,
		GeneratedAt: view.GeneratedAt,
		Stats:       view.Stats,
		Leaderboard: view.DisplayRows(),
	})
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	return p.client.Publish(ctx, p.topic, payload)
}
