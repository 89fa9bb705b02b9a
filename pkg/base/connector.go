package base

import (
	"context"
	"log"
	"time"

	"github.com/censys/bike-scanner/pkg/clock"
	"github.com/censys/bike-scanner/pkg/radio"
	"github.com/censys/bike-scanner/pkg/scanning"
)

const (
	PollInterval = 500 * time.Millisecond
	MaxPolls     = 20
)

// ConnectResult describes the association Connect ended with.
type ConnectResult struct {
	Success bool
	SSID    string
	Address string
	Gateway string
}

// Connector joins the first reachable base network.
type Connector struct {
	radio  radio.Radio
	clock  clock.Clock
	logger *log.Logger
}

func NewConnector(r radio.Radio, c clock.Clock, logger *log.Logger) *Connector {
	if logger == nil {
		logger = log.Default()
	}
	return &Connector{radio: r, clock: c, logger: logger}
}

// Connect tries each observation naming a configured base, in scan order,
// and stops at the first association that completes within the poll
// budget. A pending association that times out is dropped before the next
// candidate is tried. On success the radio stays associated; the caller
// disconnects.
func (c *Connector) Connect(ctx context.Context, obs []scanning.Observation, bases scanning.Bases) ConnectResult {
	for _, o := range obs {
		cred, ok := bases.Lookup(o.SSID)
		if !ok {
			continue
		}
		c.logger.Printf("connecting to base ssid=%q", cred.SSID)
		if err := c.radio.Join(ctx, cred.SSID, cred.Password); err != nil {
			c.logger.Printf("join ssid=%q failed: %v", cred.SSID, err)
			continue
		}

		var st radio.Status
		res := clock.PollUntil(ctx, c.clock, PollInterval, MaxPolls, func() bool {
			st = c.radio.Status(ctx)
			return st.Connected
		})
		if res.OK {
			c.logger.Printf("connected ssid=%q address=%s gateway=%s", cred.SSID, st.Address, st.Gateway)
			return ConnectResult{Success: true, SSID: cred.SSID, Address: st.Address, Gateway: st.Gateway}
		}
		if err := c.radio.Disconnect(ctx); err != nil {
			c.logger.Printf("abandon ssid=%q: %v", cred.SSID, err)
		}
		if res.Err != nil {
			c.logger.Printf("connect aborted: %v", res.Err)
			return ConnectResult{}
		}
		c.logger.Printf("connection to ssid=%q timed out after %d polls", cred.SSID, res.Polls)
	}
	return ConnectResult{}
}
