// Package battery reads the state of charge used in scan records and
// uploads.
package battery

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sensor reports the battery state.
type Sensor interface {
	// Percentage is the state of charge in [0,100].
	Percentage() float64
	Charging() bool
}

const (
	adcFullScale  = 1024.0
	dividerVolts  = 4.2
	emptyVolts    = 3.0
	rangeVolts    = 1.2
	chargingLevel = 900
)

// FromADC converts a raw 10-bit reading behind a 4.2 V divider to a charge
// percentage: 3.0 V is empty, 4.2 V is full.
func FromADC(adc int) float64 {
	voltage := float64(adc) / adcFullScale * dividerVolts
	pct := (voltage - emptyVolts) / rangeVolts * 100.0
	return clamp(pct)
}

// ChargingFromADC treats readings above the charger threshold as charging.
func ChargingFromADC(adc int) bool { return adc > chargingLevel }

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Fixed is a constant sensor for benches and tests.
type Fixed struct {
	Pct       float64
	IsCharger bool
}

func (f Fixed) Percentage() float64 { return clamp(f.Pct) }
func (f Fixed) Charging() bool      { return f.IsCharger }

// Sysfs reads a Linux power_supply directory such as
// /sys/class/power_supply/BAT0. Read failures report an empty,
// discharging battery.
type Sysfs struct {
	Dir string
}

func (s Sysfs) Percentage() float64 {
	v, err := s.readInt("capacity")
	if err != nil {
		return 0
	}
	return clamp(float64(v))
}

func (s Sysfs) Charging() bool {
	b, err := os.ReadFile(filepath.Join(s.Dir, "status"))
	if err != nil {
		return false
	}
	status := strings.TrimSpace(string(b))
	return status == "Charging" || status == "Full"
}

func (s Sysfs) readInt(name string) (int, error) {
	b, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}
