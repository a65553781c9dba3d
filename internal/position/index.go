// Package position maintains the shared last-known-location index. An
// arrest request handled on one instance must see positions written by
// location reports handled on another, so the production implementation is
// backed by Redis rather than process memory.
package position

import "context"

// Index maps (room, nickname) to the player's last reported coordinate.
// Writes are last-write-wins; no history is retained here.
type Index interface {
	// Set upserts the player's position.
	Set(ctx context.Context, roomID, nickname string, lat, lng float64) error
	// Get returns the last known position, ok=false when none is recorded.
	Get(ctx context.Context, roomID, nickname string) (lat, lng float64, ok bool, err error)
	// Distance returns the distance in meters between two players,
	// ok=false when either has no recorded position.
	Distance(ctx context.Context, roomID, a, b string) (meters float64, ok bool, err error)
	// Remove deletes one player's position, used on departure.
	Remove(ctx context.Context, roomID, nickname string) error
	// Clear drops every position for the room, used at game end.
	Clear(ctx context.Context, roomID string) error
}
