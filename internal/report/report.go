// Package report talks to the external narrative report generator: a
// request/response collaborator that turns per-player game statistics into
// a title and commentary. The engine never depends on it succeeding; a
// deterministic fallback report stands in on any error or timeout.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Stats is the fixed-shape statistics record sent to the generator.
type Stats struct {
	Role           string   `json:"role"`   // POLICE, THIEF
	Result         string   `json:"result"` // WIN, LOSE
	TotalDistanceM int      `json:"total_distance_m"`
	MaxSpeedKmh    float64  `json:"max_speed_kmh"`
	PlayTimeMin    int      `json:"play_time_min"`
	Locations      []string `json:"locations"`
}

// Report is the structured response shown to the player after a game.
type Report struct {
	Title       string   `json:"summary_title"`
	Commentary  string   `json:"commentary"`
	Tags        []string `json:"play_style_tags"`
	FitnessNote string   `json:"fitness_report"`
}

// Generator produces a report for one player's session. Implementations
// must not fail: they return the fallback instead.
type Generator interface {
	Generate(ctx context.Context, stats Stats) Report
}

// Fallback is the deterministic report used when the collaborator errors
// or times out.
func Fallback() Report {
	return Report{
		Title:       "Record Lost",
		Commentary:  "Field records were lost to a communication failure.",
		Tags:        []string{"no data"},
		FitnessNote: "0kcal",
	}
}

// HTTPGenerator calls the report service over HTTP.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Generate posts the stats and decodes the structured response, falling
// back on any failure.
func (g *HTTPGenerator) Generate(ctx context.Context, stats Stats) Report {
	body, err := json.Marshal(stats)
	if err != nil {
		slog.Error("report request marshal failed", "error", err)
		return Fallback()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("report request build failed", "error", err)
		return Fallback()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Warn("report generator unreachable, using fallback", "error", err)
		return Fallback()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("report generator error, using fallback", "status", resp.StatusCode)
		return Fallback()
	}

	var r Report
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		slog.Warn("report response decode failed, using fallback", "error", err)
		return Fallback()
	}
	if r.Title == "" {
		return Fallback()
	}
	return r
}

// NopGenerator always returns the fallback; used when no report service
// is configured.
type NopGenerator struct{}

func (NopGenerator) Generate(context.Context, Stats) Report {
	return Fallback()
}
