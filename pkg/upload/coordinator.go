// Package upload moves buffered scan data off the bike while it is parked
// on a base network.
package upload

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/censys/bike-scanner/pkg/buffer"
	"github.com/censys/bike-scanner/pkg/clock"
	"github.com/censys/bike-scanner/pkg/metrics"
	"github.com/censys/bike-scanner/pkg/mirror"
	"github.com/censys/bike-scanner/pkg/radio"
	"github.com/censys/bike-scanner/pkg/scanning"
)

// Snapshot is the live device state an upload is built from.
type Snapshot struct {
	Bike     string
	Endpoint string
	Battery  float64
	Charging bool
	AtBase   bool
	Networks []scanning.Observation
}

// Source provides the current Snapshot.
type Source interface {
	Snapshot() Snapshot
}

// TimeSource resolves document timestamps.
type TimeSource interface {
	Synced() bool
	NowEpoch() int64
	UptimeMillis() int64
}

// Outcome reports what UploadPending did.
type Outcome struct {
	Attempted      bool
	Succeeded      bool
	RecordsCleared int
}

type Coordinator struct {
	buf       *buffer.Buffer
	src       Source
	times     TimeSource
	radio     radio.Radio
	transport Transport
	mirror    mirror.Publisher
	clock     clock.Clock
	logger    *log.Logger
	newID     func() string
}

type Option func(*Coordinator)

func WithTransport(t Transport) Option { return func(c *Coordinator) { c.transport = t } }

func WithMirror(p mirror.Publisher) Option { return func(c *Coordinator) { c.mirror = p } }

func WithClock(clk clock.Clock) Option { return func(c *Coordinator) { c.clock = clk } }

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(buf *buffer.Buffer, src Source, times TimeSource, r radio.Radio, opts ...Option) *Coordinator {
	c := &Coordinator{
		buf:       buf,
		src:       src,
		times:     times,
		radio:     r,
		transport: NewTLSTransport(),
		mirror:    mirror.Noop{},
		clock:     clock.Real{},
		logger:    log.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// timestamp is epoch seconds once time is synchronized and device uptime
// in milliseconds before that. Consumers must tolerate both.
func (c *Coordinator) timestamp() (int64, bool) {
	if c.times.Synced() {
		return c.times.NowEpoch(), true
	}
	return c.times.UptimeMillis(), false
}

func (c *Coordinator) eventTime(ts int64, synced bool) time.Time {
	if synced {
		return time.Unix(ts, 0).UTC()
	}
	return c.clock.Now().UTC()
}

// UploadPending sends one document built from live state and, when the
// endpoint accepts it, clears every buffered record. It is a no-op when no
// endpoint is configured or nothing is pending. Once attempted, the radio
// is disconnected whatever the result.
//
// The document reflects the current scan, not the buffered records, and
// the clear removes records written after the document was built.
func (c *Coordinator) UploadPending(ctx context.Context) Outcome {
	snap := c.src.Snapshot()
	if snap.Endpoint == "" {
		return Outcome{}
	}
	pending, err := c.buf.Count(ctx)
	if err != nil {
		c.logger.Printf("upload skipped: %v", err)
		return Outcome{}
	}
	if pending == 0 {
		return Outcome{}
	}
	defer c.release(ctx)

	ts, synced := c.timestamp()
	doc := Document{
		Bike:      snap.Bike,
		Timestamp: ts,
		Battery:   int(snap.Battery),
		Networks:  Networks(snap.Networks),
	}
	path := ScanPath(snap.Bike, ts)
	body, ok := c.put(ctx, mirror.KindScan, snap.Endpoint, path, doc)
	if !ok {
		return Outcome{Attempted: true}
	}

	cleared, err := c.buf.Clear(ctx)
	if err != nil {
		c.logger.Printf("clear after upload: %v", err)
	}
	metrics.AddRecordsCleared(cleared)
	c.logger.Printf("upload accepted path=%s cleared=%d", path, cleared)

	c.publish(ctx, body.msg(snap, ts, synced, c.eventTime(ts, synced)))
	return Outcome{Attempted: true, Succeeded: true, RecordsCleared: cleared}
}

// Heartbeat sends the live status document. It leaves the buffer and the
// radio as they are.
func (c *Coordinator) Heartbeat(ctx context.Context) bool {
	snap := c.src.Snapshot()
	if snap.Endpoint == "" {
		return false
	}
	pending, err := c.buf.Count(ctx)
	if err != nil {
		c.logger.Printf("heartbeat pending count: %v", err)
	}
	ts, synced := c.timestamp()
	doc := StatusDocument{
		Bike:       snap.Bike,
		Timestamp:  ts,
		Battery:    int(snap.Battery),
		Charging:   snap.Charging,
		Pending:    pending,
		AtBase:     snap.AtBase,
		TimeSynced: synced,
		UptimeMs:   c.times.UptimeMillis(),
		Networks:   Networks(snap.Networks),
	}
	body, ok := c.put(ctx, mirror.KindStatus, snap.Endpoint, StatusPath(snap.Bike), doc)
	if !ok {
		return false
	}
	c.publish(ctx, body.msg(snap, ts, synced, c.eventTime(ts, synced)))
	return true
}

type sent struct {
	kind    string
	session string
	path    string
	payload []byte
}

func (s sent) msg(snap Snapshot, ts int64, synced bool, at time.Time) mirror.Message {
	return mirror.Message{
		Kind:      s.kind,
		Bike:      snap.Bike,
		SessionID: s.session,
		Path:      s.path,
		Timestamp: ts,
		Synced:    synced,
		Time:      at,
		Battery:   int(snap.Battery),
		Networks:  scanning.Strongest(snap.Networks, scanning.MaxRecordNetworks),
		Payload:   s.payload,
	}
}

func (c *Coordinator) put(ctx context.Context, kind, endpoint, path string, doc any) (sent, bool) {
	session := c.newID()
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		c.logger.Printf("%s upload session=%s: %v", kind, session, err)
		return sent{}, false
	}
	payload, err := Marshal(doc)
	if err != nil {
		c.logger.Printf("%s upload session=%s: %v", kind, session, err)
		return sent{}, false
	}

	c.logger.Printf("%s upload session=%s host=%s path=%s bytes=%d", kind, session, ep.Host, path, len(payload))
	start := c.clock.Now()
	resp, err := c.transport.Put(ctx, ep, path, payload)
	ok := err == nil && Accepted(resp)
	metrics.ObserveUpload(kind, ok, c.clock.Now().Sub(start).Seconds())
	switch {
	case err != nil:
		c.logger.Printf("%s upload session=%s failed: %v", kind, session, err)
	case !ok:
		c.logger.Printf("%s upload session=%s rejected: %s", kind, session, StatusLine(resp))
	}
	if !ok {
		return sent{}, false
	}
	return sent{kind: kind, session: session, path: path, payload: payload}, true
}

func (c *Coordinator) publish(ctx context.Context, msg mirror.Message) {
	if err := c.mirror.Publish(ctx, msg); err != nil {
		c.logger.Printf("mirror %s path=%s: %v", msg.Kind, msg.Path, err)
	}
}

func (c *Coordinator) release(ctx context.Context) {
	if c.radio == nil {
		return
	}
	if err := c.radio.Disconnect(ctx); err != nil {
		c.logger.Printf("disconnect after upload: %v", err)
	}
}
