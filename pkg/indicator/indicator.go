// Package indicator renders device state as a blink pattern on a single LED.
package indicator

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Mode selects the blink pattern.
type Mode int

const (
	ModeScanning Mode = iota
	ModeAtBase
	ModeConfig
)

func (m Mode) String() string {
	switch m {
	case ModeAtBase:
		return "at-base"
	case ModeConfig:
		return "config"
	default:
		return "scanning"
	}
}

// ModeFor picks the pattern; configuration mode wins over base proximity.
func ModeFor(configMode, atBase bool) Mode {
	switch {
	case configMode:
		return ModeConfig
	case atBase:
		return ModeAtBase
	default:
		return ModeScanning
	}
}

// Phase is one LED state held for a duration.
type Phase struct {
	On  bool
	For time.Duration
}

var patterns = map[Mode][]Phase{
	// three short blinks, long pause
	ModeConfig: {
		{true, 100 * time.Millisecond}, {false, 100 * time.Millisecond},
		{true, 100 * time.Millisecond}, {false, 100 * time.Millisecond},
		{true, 100 * time.Millisecond}, {false, 100 * time.Millisecond},
		{false, 1000 * time.Millisecond},
	},
	// one slow blink, long pause
	ModeAtBase: {
		{true, 500 * time.Millisecond}, {false, 500 * time.Millisecond},
		{false, 1500 * time.Millisecond},
	},
	// two short blinks, medium pause
	ModeScanning: {
		{true, 200 * time.Millisecond}, {false, 200 * time.Millisecond},
		{true, 200 * time.Millisecond}, {false, 200 * time.Millisecond},
		{false, 800 * time.Millisecond},
	},
}

// Pattern returns the phases for m.
func Pattern(m Mode) []Phase { return patterns[m] }

// Output drives the physical LED.
type Output interface {
	Set(on bool) error
}

// Nop discards LED changes.
type Nop struct{}

func (Nop) Set(bool) error { return nil }

// SysfsLED writes to a Linux LED brightness file such as
// /sys/class/leds/led0/brightness.
type SysfsLED struct {
	Path string
}

func (l SysfsLED) Set(on bool) error {
	v := []byte("0")
	if on {
		v = []byte("1")
	}
	if err := os.WriteFile(l.Path, v, 0o644); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// Indicator steps through the current pattern. Update never blocks; it is
// called once per loop iteration and advances at most one phase.
type Indicator struct {
	out     Output
	mode    Mode
	step    int
	since   time.Time
	started bool
	lit     bool
	failing bool
	logger  *log.Logger
}

// New drives out. A nil logger uses log.Default(); only the first failed
// write of a run of failures is logged.
func New(out Output, logger *log.Logger) *Indicator {
	if out == nil {
		out = Nop{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Indicator{out: out, logger: logger}
}

// Update applies mode at time now.
func (ind *Indicator) Update(now time.Time, mode Mode) {
	if !ind.started || mode != ind.mode {
		ind.started = true
		ind.mode = mode
		ind.step = 0
		ind.since = now
		ind.apply()
		return
	}
	phases := patterns[ind.mode]
	if now.Sub(ind.since) < phases[ind.step].For {
		return
	}
	ind.step = (ind.step + 1) % len(phases)
	ind.since = now
	ind.apply()
}

func (ind *Indicator) apply() {
	on := patterns[ind.mode][ind.step].On
	if on == ind.lit && ind.step != 0 {
		return
	}
	ind.lit = on
	if err := ind.out.Set(on); err != nil {
		if !ind.failing {
			ind.logger.Printf("indicator write failed: %v", err)
		}
		ind.failing = true
		return
	}
	ind.failing = false
}

// Lit reports the last LED state written.
func (ind *Indicator) Lit() bool { return ind.lit }

// Mode reports the pattern in use.
func (ind *Indicator) Mode() Mode { return ind.mode }
