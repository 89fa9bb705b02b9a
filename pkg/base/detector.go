// Package base decides whether the bike is home and, if so, gets it onto
// one of the configured base networks.
package base

import (
	"log"

	"github.com/censys/bike-scanner/pkg/scanning"
)

// Threshold is the signal strength a base network must exceed, in dBm.
const Threshold = -80

// IsAtBase reports whether any observation is a configured base network
// heard louder than Threshold. Matching SSIDs are logged as they are seen.
func IsAtBase(obs []scanning.Observation, bases scanning.Bases, logger *log.Logger) bool {
	if logger == nil {
		logger = log.Default()
	}
	for _, o := range obs {
		if _, ok := bases.Lookup(o.SSID); !ok {
			continue
		}
		logger.Printf("base match ssid=%q rssi=%d", o.SSID, o.RSSI)
		if o.RSSI > Threshold {
			return true
		}
	}
	return false
}
