// Package radio abstracts the WiFi station interface: scanning, joining a
// network, polling association state and leaving it again.
package radio

import (
	"context"

	"github.com/censys/bike-scanner/pkg/scanning"
)

// Status is the association state of the station interface.
type Status struct {
	Connected bool
	Address   string
	Gateway   string
}

// Radio is the station-mode WiFi interface.
type Radio interface {
	// Scan returns the networks currently in range, at most
	// scanning.MaxObservations of them.
	Scan(ctx context.Context) ([]scanning.Observation, error)
	// Join starts associating with ssid and returns without waiting for
	// the outcome; callers poll Status.
	Join(ctx context.Context, ssid, password string) error
	Status(ctx context.Context) Status
	Disconnect(ctx context.Context) error
}
