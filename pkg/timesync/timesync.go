package timesync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/beevik/ntp"

	"github.com/censys/bike-scanner/pkg/clock"
)

// DefaultServer is the NTP pool the firmware used.
const DefaultServer = "pool.ntp.org"

// QueryFunc returns the offset between the local clock and the server.
type QueryFunc func(ctx context.Context, server string) (time.Duration, error)

// Service tracks device uptime and, once synchronized, true epoch time.
// Synchronization is sticky: after the first success it is never retried.
type Service struct {
	clk       clock.Clock
	boot      time.Time
	server    string
	utcOffset time.Duration
	query     QueryFunc
	logger    *log.Logger

	synced bool
	offset time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithQuery replaces the NTP query, mainly for tests.
func WithQuery(q QueryFunc) Option { return func(s *Service) { s.query = q } }

// WithUTCOffset shifts NowEpoch by a fixed zone offset. The firmware reported
// epoch time shifted to its local zone; zero keeps plain UTC.
func WithUTCOffset(d time.Duration) Option { return func(s *Service) { s.utcOffset = d } }

// WithLogger sets the logger; nil keeps log.Default().
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New starts the uptime counter at the current clock reading.
func New(clk clock.Clock, server string, opts ...Option) *Service {
	if server == "" {
		server = DefaultServer
	}
	s := &Service{
		clk:    clk,
		boot:   clk.Now(),
		server: server,
		query:  queryNTP,
		logger: log.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func queryNTP(ctx context.Context, server string) (time.Duration, error) {
	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response %s: %w", server, err)
	}
	return resp.ClockOffset, nil
}

// Synchronize queries the time server unless a previous call succeeded.
func (s *Service) Synchronize(ctx context.Context) bool {
	if s.synced {
		return true
	}
	offset, err := s.query(ctx, s.server)
	if err != nil {
		s.logger.Printf("time sync failed: %v", err)
		return false
	}
	s.offset = offset
	s.synced = true
	s.logger.Printf("time synchronized server=%s offset=%s", s.server, offset)
	return true
}

func (s *Service) Synced() bool { return s.synced }

// NowEpoch returns seconds since the Unix epoch. Only meaningful once
// Synced reports true.
func (s *Service) NowEpoch() int64 {
	return s.clk.Now().Add(s.offset + s.utcOffset).Unix()
}

// UptimeMillis is the device clock. It restarts from zero on every boot.
func (s *Service) UptimeMillis() int64 {
	return s.clk.Now().Sub(s.boot).Milliseconds()
}
