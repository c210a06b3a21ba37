package tracking

import (
	"context"
	"strings"

	"github.com/m3rciful/goroute/internal/domain"
)

// LocationSource reports where a tracked bus is now.
type LocationSource interface {
	Next(ctx context.Context, bus domain.Bus) (string, error)
}

// DefaultWaypoints is the rotation used when none are configured.
var DefaultWaypoints = []string{"Mumbai", "Pune", "Nagpur", "Nashik", "Aurangabad", "Kolhapur"}

// WaypointRotation moves a bus one stop along its route: origin, boarding
// points, destination, then back to the origin. Buses with fewer than two
// distinct stops use Stops, or DefaultWaypoints when that is empty. A bus
// whose last location is not on the list starts from the first stop.
type WaypointRotation struct {
	Stops []string
}

func (w WaypointRotation) Next(_ context.Context, bus domain.Bus) (string, error) {
	stops := routeStops(bus)
	if len(stops) < 2 {
		stops = w.Stops
	}
	if len(stops) == 0 {
		stops = DefaultWaypoints
	}
	at := strings.TrimSpace(bus.LastLocation)
	for i, stop := range stops {
		if strings.EqualFold(stop, at) {
			return stops[(i+1)%len(stops)], nil
		}
	}
	return stops[0], nil
}

func routeStops(bus domain.Bus) []string {
	names := make([]string, 0, len(bus.BoardingPoints)+2)
	names = append(names, bus.Origin)
	for _, bp := range bus.BoardingPoints {
		names = append(names, bp.Name)
	}
	names = append(names, bus.Destination)

	var stops []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		stops = append(stops, n)
	}
	return stops
}
