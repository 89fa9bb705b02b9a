package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/storage"
)

// Field bounds carried over from the firmware's fixed-size buffers.
const (
	MaxBikeIDLen   = 9
	MaxEndpointLen = 127
	MaxKeyLen      = 63
)

// Persisted file names.
const (
	bikeFile     = "bike.txt"
	timingFile   = "timing.txt"
	basesFile    = "bases.txt"
	endpointFile = "firebase.txt"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the device configuration edited in configuration mode.
type Config struct {
	BikeID             string         `json:"bikeId"`
	ScanTimeActiveMs   int            `json:"scanTimeActiveMs"`
	ScanTimeInactiveMs int            `json:"scanTimeInactiveMs"`
	Bases              scanning.Bases `json:"bases"`
	RemoteEndpoint     string         `json:"remoteEndpoint"`
	RemoteKey          string         `json:"remoteKey"`
}

// Defaults returns the factory configuration: no bases and no endpoint.
func Defaults() Config {
	return Config{
		BikeID:             "sl01",
		ScanTimeActiveMs:   5000,
		ScanTimeInactiveMs: 30000,
	}
}

// ActiveInterval is the sleep between cycles while away from base.
func (c Config) ActiveInterval() time.Duration {
	return time.Duration(c.ScanTimeActiveMs) * time.Millisecond
}

// InactiveInterval is the sleep between cycles while at base.
func (c Config) InactiveInterval() time.Duration {
	return time.Duration(c.ScanTimeInactiveMs) * time.Millisecond
}

// Validate reports the first field that does not fit its bound.
func (c Config) Validate() error {
	for _, check := range []func() error{c.validateBike, c.validateTiming, c.validateBases, c.validateEndpoint} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func bounded(field, v string, max int) error {
	if _, err := scanning.Bounded(field, v, max); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (c Config) validateBike() error {
	if strings.TrimSpace(c.BikeID) == "" {
		return fmt.Errorf("%w: bikeId must not be empty", ErrInvalid)
	}
	if err := bounded("bikeId", c.BikeID, MaxBikeIDLen); err != nil {
		return err
	}
	if strings.ContainsAny(c.BikeID, "/?#") {
		return fmt.Errorf("%w: bikeId %q contains path characters", ErrInvalid, c.BikeID)
	}
	return nil
}

func (c Config) validateTiming() error {
	if c.ScanTimeActiveMs <= 0 || c.ScanTimeInactiveMs <= 0 {
		return fmt.Errorf("%w: scan times must be > 0 (got %d/%d)", ErrInvalid, c.ScanTimeActiveMs, c.ScanTimeInactiveMs)
	}
	return nil
}

func (c Config) validateBases() error {
	for i, b := range c.Bases {
		if err := bounded(fmt.Sprintf("base%d.ssid", i+1), b.SSID, scanning.MaxCredentialLen); err != nil {
			return err
		}
		if err := bounded(fmt.Sprintf("base%d.password", i+1), b.Password, scanning.MaxCredentialLen); err != nil {
			return err
		}
		if strings.Contains(b.SSID, "\n") || strings.Contains(b.Password, "\n") {
			return fmt.Errorf("%w: base%d contains a newline", ErrInvalid, i+1)
		}
	}
	return nil
}

func (c Config) validateEndpoint() error {
	if err := bounded("remoteEndpoint", c.RemoteEndpoint, MaxEndpointLen); err != nil {
		return err
	}
	return bounded("remoteKey", c.RemoteKey, MaxKeyLen)
}

// Store loads and saves Config as the small text files the firmware kept on
// flash, on top of any blob store.
type Store struct {
	blobs storage.Store
}

func NewStore(blobs storage.Store) *Store {
	return &Store{blobs: blobs}
}

// Load starts from Defaults and overlays each file on its own. A file that
// cannot be read, parsed or validated leaves its fields at their defaults;
// the other files still apply. The returned error joins every file failure.
func (s *Store) Load(ctx context.Context) (Config, error) {
	cfg := Defaults()
	var errs []error

	overlay := func(name string, apply func(v string, c *Config) error, check func(Config) error) {
		v, err := s.read(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return
		}
		if v == "" {
			return
		}
		next := cfg
		if err := apply(v, &next); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		if err := check(next); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		cfg = next
	}

	overlay(bikeFile, func(v string, c *Config) error {
		if id := strings.TrimSpace(v); id != "" {
			c.BikeID = id
		}
		return nil
	}, Config.validateBike)

	overlay(timingFile, func(v string, c *Config) error {
		active, inactive, ok := strings.Cut(v, "\n")
		if !ok || active == "" {
			return nil
		}
		a, errA := strconv.Atoi(strings.TrimSpace(active))
		i, errI := strconv.Atoi(strings.TrimSpace(inactive))
		if errA != nil || errI != nil {
			return fmt.Errorf("%w: timing %q", ErrInvalid, v)
		}
		c.ScanTimeActiveMs, c.ScanTimeInactiveMs = a, i
		return nil
	}, Config.validateTiming)

	overlay(basesFile, func(v string, c *Config) error {
		lines := strings.Split(v, "\n")
		for i := 0; i < len(c.Bases) && 2*i < len(lines); i++ {
			c.Bases[i].SSID = strings.TrimRight(lines[2*i], "\r")
			if 2*i+1 < len(lines) {
				c.Bases[i].Password = strings.TrimRight(lines[2*i+1], "\r")
			}
		}
		return nil
	}, Config.validateBases)

	overlay(endpointFile, func(v string, c *Config) error {
		endpoint, key, ok := strings.Cut(v, "\n")
		if !ok || endpoint == "" {
			return nil
		}
		c.RemoteEndpoint = strings.TrimSpace(endpoint)
		c.RemoteKey = strings.TrimSpace(key)
		return nil
	}, Config.validateEndpoint)

	return cfg, errors.Join(errs...)
}

func (s *Store) read(ctx context.Context, name string) (string, error) {
	b, err := s.blobs.Read(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", name, err)
	}
	return string(b), nil
}

// Save validates cfg and writes all four files.
func (s *Store) Save(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	var bases []string
	for _, b := range cfg.Bases {
		bases = append(bases, b.SSID, b.Password)
	}
	files := []struct{ name, body string }{
		{bikeFile, cfg.BikeID},
		{timingFile, strconv.Itoa(cfg.ScanTimeActiveMs) + "\n" + strconv.Itoa(cfg.ScanTimeInactiveMs)},
		{basesFile, strings.Join(bases, "\n")},
		{endpointFile, cfg.RemoteEndpoint + "\n" + cfg.RemoteKey},
	}
	for _, f := range files {
		if err := s.blobs.Write(ctx, f.name, []byte(f.body)); err != nil {
			return fmt.Errorf("save %s: %w", f.name, err)
		}
	}
	return nil
}
