// Package cycle runs the tracker: the boot decision, the duty-cycle loop
// and configuration mode.
package cycle

import (
	"context"
	"errors"
	"io"
	"log"
	"os"

	"github.com/censys/bike-scanner/pkg/base"
	"github.com/censys/bike-scanner/pkg/battery"
	"github.com/censys/bike-scanner/pkg/buffer"
	"github.com/censys/bike-scanner/pkg/clock"
	"github.com/censys/bike-scanner/pkg/config"
	"github.com/censys/bike-scanner/pkg/indicator"
	"github.com/censys/bike-scanner/pkg/menu"
	"github.com/censys/bike-scanner/pkg/metrics"
	"github.com/censys/bike-scanner/pkg/mirror"
	"github.com/censys/bike-scanner/pkg/radio"
	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/timesync"
	"github.com/censys/bike-scanner/pkg/upload"
)

// TimeService is the clock service the device synchronizes once per boot.
type TimeService interface {
	Synchronize(ctx context.Context) bool
	Synced() bool
	NowEpoch() int64
	UptimeMillis() int64
}

// Options wires a Device. Config, ConfigStore, Buffer and Radio are
// required; everything else has a default.
type Options struct {
	Config      config.Config
	ConfigStore *config.Store
	Buffer      *buffer.Buffer
	Radio       radio.Radio

	Clock     clock.Clock
	Time      TimeService
	Battery   battery.Sensor
	Indicator *indicator.Indicator
	Transport upload.Transport
	Mirror    mirror.Publisher

	// Console enables the maintenance menu; MenuOut receives its output.
	Console *menu.Console
	MenuOut io.Writer

	ConfigAddr  string
	ForceConfig bool
	Logger      *log.Logger
}

// State is what the device knows about its surroundings after a cycle.
type State struct {
	AtBase     bool
	TimeSynced bool
	Pending    int
}

// Device owns the configuration, the live observation set and the device
// state for one boot, together with the collaborators acting on them.
type Device struct {
	cfg        config.Config
	cfgStore   *config.Store
	buf        *buffer.Buffer
	radio      radio.Radio
	clock      clock.Clock
	time       TimeService
	battery    battery.Sensor
	indicator  *indicator.Indicator
	console    *menu.Console
	menuOut    io.Writer
	configAddr string
	force      bool
	logger     *log.Logger

	connector *base.Connector
	uploader  *upload.Coordinator

	state      State
	live       []scanning.Observation
	configMode bool
}

func NewDevice(opts Options) *Device {
	d := &Device{
		cfg:        opts.Config,
		cfgStore:   opts.ConfigStore,
		buf:        opts.Buffer,
		radio:      opts.Radio,
		clock:      opts.Clock,
		time:       opts.Time,
		battery:    opts.Battery,
		indicator:  opts.Indicator,
		console:    opts.Console,
		menuOut:    opts.MenuOut,
		configAddr: opts.ConfigAddr,
		force:      opts.ForceConfig,
		logger:     opts.Logger,
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	if d.clock == nil {
		d.clock = clock.Real{}
	}
	if d.time == nil {
		d.time = timesync.New(d.clock, "", timesync.WithLogger(d.logger))
	}
	if d.battery == nil {
		d.battery = battery.Fixed{Pct: 100}
	}
	if d.indicator == nil {
		d.indicator = indicator.New(nil, d.logger)
	}
	if d.menuOut == nil {
		d.menuOut = os.Stdout
	}
	if opts.Mirror == nil {
		opts.Mirror = mirror.Noop{}
	}

	d.connector = base.NewConnector(d.radio, d.clock, d.logger)
	uopts := []upload.Option{
		upload.WithMirror(opts.Mirror),
		upload.WithClock(d.clock),
		upload.WithLogger(d.logger),
	}
	if opts.Transport != nil {
		uopts = append(uopts, upload.WithTransport(opts.Transport))
	}
	d.uploader = upload.New(d.buf, d, d.time, d.radio, uopts...)
	return d
}

// State returns the device state as of the last cycle.
func (d *Device) State() State { return d.state }

// Live returns the current observation set.
func (d *Device) Live() []scanning.Observation { return d.live }

// InConfigMode reports whether this boot serves configuration.
func (d *Device) InConfigMode() bool { return d.configMode }

// Snapshot implements upload.Source.
func (d *Device) Snapshot() upload.Snapshot {
	return upload.Snapshot{
		Bike:     d.cfg.BikeID,
		Endpoint: d.cfg.RemoteEndpoint,
		Battery:  d.battery.Percentage(),
		Charging: d.battery.Charging(),
		AtBase:   d.state.AtBase,
		Networks: d.live,
	}
}

// scan replaces the live observation set. A failed scan leaves it empty.
func (d *Device) scan(ctx context.Context) []scanning.Observation {
	obs, err := d.radio.Scan(ctx)
	if err != nil {
		d.logger.Printf("scan failed: %v", err)
		obs = nil
	}
	d.live = obs
	metrics.SetNetworksSeen(len(obs))
	d.logger.Printf("scan networks=%d", len(obs))
	return obs
}

// record appends one ScanRecord for obs and refreshes the pending count.
func (d *Device) record(ctx context.Context, obs []scanning.Observation) {
	pct := d.battery.Percentage()
	metrics.SetBatteryPercent(pct)
	rec := buffer.NewRecord(d.time.UptimeMillis(), pct, d.battery.Charging(), obs)
	id, err := d.buf.Append(ctx, rec)
	if err != nil {
		d.logger.Printf("store scan: %v", err)
	} else {
		d.logger.Printf("stored %s networks=%d battery=%d", id, len(rec.Networks), rec.Battery)
	}
	d.refreshPending(ctx)
}

func (d *Device) refreshPending(ctx context.Context) {
	n, err := d.buf.Count(ctx)
	if err != nil {
		d.logger.Printf("count records: %v", err)
		return
	}
	d.state.Pending = n
	metrics.SetPendingRecords(n)
}

// disconnect leaves the current network if the radio is still on one.
func (d *Device) disconnect(ctx context.Context) {
	if !d.radio.Status(ctx).Connected {
		return
	}
	if err := d.radio.Disconnect(ctx); err != nil {
		d.logger.Printf("disconnect: %v", err)
	}
}

func (d *Device) updateIndicator() {
	d.indicator.Update(d.clock.Now(), indicator.ModeFor(d.configMode, d.state.AtBase))
}

// ScanNow implements menu.Commands.
func (d *Device) ScanNow(ctx context.Context) ([]scanning.Observation, error) {
	obs, err := d.radio.Scan(ctx)
	if err != nil {
		return nil, err
	}
	d.live = obs
	return obs, nil
}

// TestBase implements menu.Commands.
func (d *Device) TestBase(ctx context.Context) (bool, base.ConnectResult) {
	obs := d.scan(ctx)
	if !base.IsAtBase(obs, d.cfg.Bases, d.logger) {
		return false, base.ConnectResult{}
	}
	res := d.connector.Connect(ctx, obs, d.cfg.Bases)
	metrics.ObserveConnect(res.Success)
	d.disconnect(ctx)
	return true, res
}

var errNoBase = errors.New("no base network reachable")

// TestUpload implements menu.Commands. It sends a status document rather
// than a scan upload so buffered records are left alone.
func (d *Device) TestUpload(ctx context.Context) (bool, error) {
	obs := d.scan(ctx)
	res := d.connector.Connect(ctx, obs, d.cfg.Bases)
	metrics.ObserveConnect(res.Success)
	if !res.Success {
		return false, errNoBase
	}
	defer d.disconnect(ctx)
	d.state.TimeSynced = d.time.Synchronize(ctx)
	return d.uploader.Heartbeat(ctx), nil
}

// Config implements menu.Commands.
func (d *Device) Config() config.Config { return d.cfg }

// UptimeMillis implements menu.Commands.
func (d *Device) UptimeMillis() int64 { return d.time.UptimeMillis() }
