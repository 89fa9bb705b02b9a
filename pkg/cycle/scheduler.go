package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/censys/bike-scanner/pkg/base"
	"github.com/censys/bike-scanner/pkg/configmode"
	"github.com/censys/bike-scanner/pkg/menu"
	"github.com/censys/bike-scanner/pkg/metrics"
)

const (
	// HeartbeatInterval separates status uploads. It runs from boot or the
	// last accepted heartbeat; failures do not reset it.
	HeartbeatInterval = 5 * time.Minute

	indicatorTick = 100 * time.Millisecond
)

var (
	// ErrRestart asks the caller to reload configuration and boot again.
	ErrRestart = errors.New("restart requested")
	// ErrConfigRestart asks for a restart straight into configuration mode.
	ErrConfigRestart = fmt.Errorf("configuration mode %w", ErrRestart)
)

// Scheduler drives one Device through its boot.
type Scheduler struct {
	dev           *Device
	cfgServer     *configmode.Server
	lastHeartbeat time.Time
}

func NewScheduler(dev *Device) *Scheduler {
	return &Scheduler{
		dev:           dev,
		cfgServer:     configmode.New(dev.cfgStore, dev.buf, dev.radio, dev.cfg, dev.logger),
		lastHeartbeat: dev.clock.Now(),
	}
}

// ConfigServer is the API served while in configuration mode.
func (s *Scheduler) ConfigServer() *configmode.Server { return s.cfgServer }

// Boot decides between configuration mode and scanning. Configuration mode
// is entered when forced, or when the first base slot is configured and a
// base is already in range at power-up.
func (s *Scheduler) Boot(ctx context.Context) bool {
	d := s.dev
	switch {
	case d.force:
		d.logger.Printf("configuration mode forced")
		d.configMode = true
	case d.cfg.Bases[0].SSID == "":
		d.configMode = false
	default:
		obs := d.scan(ctx)
		d.configMode = base.IsAtBase(obs, d.cfg.Bases, d.logger)
		if d.configMode {
			d.logger.Printf("base in range at boot, entering configuration mode")
		}
	}
	return d.configMode
}

// Run boots the device and loops until ctx is cancelled or a restart is
// requested.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Boot(ctx) {
		return s.runConfigMode(ctx)
	}
	for {
		sleep, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if err := s.sleep(ctx, sleep); err != nil {
			return err
		}
	}
}

// Step runs one duty cycle and returns how long to sleep before the next.
func (s *Scheduler) Step(ctx context.Context) (time.Duration, error) {
	d := s.dev
	d.updateIndicator()

	if d.console != nil {
		if key, ok := d.console.Poll(); ok && key == menu.Trigger {
			res := menu.NewSession(d.console, d.menuOut, d, d.buf, d.clock, d.logger).Run(ctx)
			if res.ConfigMode {
				return 0, ErrConfigRestart
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	obs := d.scan(ctx)
	d.record(ctx, obs)

	d.state.AtBase = base.IsAtBase(obs, d.cfg.Bases, d.logger)
	metrics.ObserveCycle(d.state.AtBase)
	d.updateIndicator()

	if !d.state.AtBase {
		return d.cfg.ActiveInterval(), nil
	}
	s.atBase(ctx)
	return d.cfg.InactiveInterval(), nil
}

// atBase connects when an endpoint is configured and there is something to
// send, synchronizes time, then sends a due heartbeat before uploading
// pending records. The radio is left disconnected.
func (s *Scheduler) atBase(ctx context.Context) {
	d := s.dev
	if d.cfg.RemoteEndpoint == "" {
		return
	}
	heartbeatDue := d.clock.Now().Sub(s.lastHeartbeat) >= HeartbeatInterval
	if d.state.Pending == 0 && !heartbeatDue {
		return
	}
	defer d.disconnect(ctx)

	res := d.connector.Connect(ctx, d.live, d.cfg.Bases)
	metrics.ObserveConnect(res.Success)
	if !res.Success {
		d.logger.Printf("at base but not connected, skipping upload")
		return
	}
	d.state.TimeSynced = d.time.Synchronize(ctx)

	if heartbeatDue {
		if d.uploader.Heartbeat(ctx) {
			s.lastHeartbeat = d.clock.Now()
		}
	}
	if d.state.Pending > 0 {
		out := d.uploader.UploadPending(ctx)
		d.logger.Printf("upload attempted=%t succeeded=%t cleared=%d", out.Attempted, out.Succeeded, out.RecordsCleared)
		d.refreshPending(ctx)
	}
}

// sleep waits d while keeping the indicator animated.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	for d > 0 {
		step := min(d, indicatorTick)
		if err := s.dev.clock.Sleep(ctx, step); err != nil {
			return err
		}
		s.dev.updateIndicator()
		d -= step
	}
	return nil
}

// runConfigMode serves the configuration API until a configuration is
// saved or ctx is cancelled. There is no way back to scanning without a
// restart.
func (s *Scheduler) runConfigMode(ctx context.Context) error {
	d := s.dev
	d.updateIndicator()
	if !d.force {
		res := d.connector.Connect(ctx, d.live, d.cfg.Bases)
		metrics.ObserveConnect(res.Success)
		if res.Success {
			d.logger.Printf("configuration mode on %s address=%s", res.SSID, res.Address)
		}
	}

	serveCtx, cancel := context.WithCancel(ctx)
	served := make(chan struct{})
	if d.configAddr != "" {
		go func() {
			defer close(served)
			if err := s.cfgServer.ListenAndServe(serveCtx, d.configAddr); err != nil {
				d.logger.Printf("configuration API: %v", err)
			}
		}()
	} else {
		close(served)
	}
	defer func() {
		cancel()
		<-served
	}()

	for {
		select {
		case cfg := <-s.cfgServer.Saved():
			d.logger.Printf("configuration for bike %s saved, restarting", cfg.BikeID)
			return ErrRestart
		default:
		}
		if err := d.clock.Sleep(ctx, indicatorTick); err != nil {
			return err
		}
		d.updateIndicator()
	}
}
