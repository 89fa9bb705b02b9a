package menu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/censys/bike-scanner/pkg/base"
	"github.com/censys/bike-scanner/pkg/buffer"
	"github.com/censys/bike-scanner/pkg/clock"
	"github.com/censys/bike-scanner/pkg/config"
	"github.com/censys/bike-scanner/pkg/scanning"
)

const (
	// IdleTimeout ends a session that receives no key.
	IdleTimeout = 30 * time.Second
	// Trigger is the key that opens the menu from the duty cycle.
	Trigger = 'm'

	recordPreview = 5
)

// Commands are the device actions the menu can run.
type Commands interface {
	ScanNow(ctx context.Context) ([]scanning.Observation, error)
	// TestBase scans, reports whether a base is in range and, if so,
	// tries to join it and leaves it again.
	TestBase(ctx context.Context) (found bool, res base.ConnectResult)
	// TestUpload joins a base and sends a status document.
	TestUpload(ctx context.Context) (sent bool, err error)
	Config() config.Config
	UptimeMillis() int64
}

// Result tells the caller how a session ended.
type Result struct {
	ConfigMode bool
}

// Session is one interactive menu visit.
type Session struct {
	console *Console
	out     io.Writer
	cmds    Commands
	buf     *buffer.Buffer
	clock   clock.Clock
	idle    time.Duration
	logger  *log.Logger
}

// NewSession builds a session whose idle timeout runs on clk. A nil clk uses
// the wall clock and a nil logger uses log.Default().
func NewSession(console *Console, out io.Writer, cmds Commands, buf *buffer.Buffer, clk clock.Clock, logger *log.Logger) *Session {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Session{console: console, out: out, cmds: cmds, buf: buf, clock: clk, idle: IdleTimeout, logger: logger}
}

// Run shows the menu and handles keys until q, the idle timeout, the end of
// input or a request for configuration mode.
func (s *Session) Run(ctx context.Context) Result {
	s.showMenu()
	for {
		key, err := s.console.Next(ctx, s.clock, s.idle)
		switch {
		case errors.Is(err, ErrIdle):
			s.println("\nmenu idle, resuming scan")
			return Result{}
		case err != nil:
			return Result{}
		}
		s.println(string(key))

		switch key {
		case '1':
			s.monitor(ctx)
		case '2':
			s.testBase(ctx)
		case '3':
			s.testUpload(ctx)
		case '4':
			s.showConfig()
		case '5':
			s.showRecords(ctx)
		case '6':
			s.export(ctx)
		case '7':
			s.println("\n=== CONFIGURATION MODE ===")
			s.println("restarting in configuration mode...")
			return Result{ConfigMode: true}
		case 'q', 'Q':
			s.println("leaving menu")
			return Result{}
		}
		s.showMenu()
	}
}

func (s *Session) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Session) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}

func (s *Session) showMenu() {
	s.println("\n=== MENU ===")
	s.println("1) Monitor networks")
	s.println("2) Check base connection")
	s.println("3) Test upload")
	s.println("4) Show configuration")
	s.println("5) Show stored records")
	s.println("6) Export records")
	s.println("7) Enter configuration mode")
	s.println("q) Leave menu")
	s.printf("Choice: ")
}

func (s *Session) monitor(ctx context.Context) {
	s.println("\n=== NETWORKS ===")
	obs, err := s.cmds.ScanNow(ctx)
	if err != nil {
		s.printf("scan failed: %v\n", err)
		return
	}
	for _, o := range obs {
		s.printf("%s | %d dBm | channel %d\n", o.SSID, o.RSSI, o.Channel)
	}
}

func (s *Session) testBase(ctx context.Context) {
	s.println("\n=== BASE CONNECTION ===")
	found, res := s.cmds.TestBase(ctx)
	switch {
	case !found:
		s.println("no base network in range")
	case res.Success:
		s.printf("base detected, connected to %s\naddress: %s\n", res.SSID, res.Address)
	default:
		s.println("base detected, connection failed")
	}
}

func (s *Session) testUpload(ctx context.Context) {
	s.println("\n=== UPLOAD TEST ===")
	cfg := s.cmds.Config()
	if cfg.RemoteEndpoint == "" {
		s.println("remote endpoint not configured")
		return
	}
	s.printf("endpoint: %s\n", cfg.RemoteEndpoint)
	s.printf("key: %s...\n", prefix(cfg.RemoteKey, 10))
	sent, err := s.cmds.TestUpload(ctx)
	switch {
	case err != nil:
		s.printf("upload test failed: %v\n", err)
	case sent:
		s.println("upload accepted")
	default:
		s.println("upload rejected")
	}
}

func (s *Session) showConfig() {
	cfg := s.cmds.Config()
	s.println("\n=== CONFIGURATION ===")
	s.printf("Bike ID: %s\n", cfg.BikeID)
	s.printf("Active scan: %d ms\n", cfg.ScanTimeActiveMs)
	s.printf("Inactive scan: %d ms\n", cfg.ScanTimeInactiveMs)
	for i, b := range cfg.Bases {
		s.printf("Base %d: '%s' / '%s'\n", i+1, b.SSID, b.Password)
	}
	s.printf("Endpoint: %s\n", cfg.RemoteEndpoint)
	s.printf("Key: %s...\n", prefix(cfg.RemoteKey, 15))
}

func (s *Session) showRecords(ctx context.Context) {
	s.println("\n=== STORED RECORDS ===")
	ids, err := s.buf.IDs(ctx)
	if err != nil {
		s.printf("list failed: %v\n", err)
		return
	}
	if len(ids) == 0 {
		s.println("no records stored")
		return
	}
	for i, id := range ids {
		if i == recordPreview {
			s.printf("(showing the first %d of %d records)\n", recordPreview, len(ids))
			break
		}
		raw, err := s.buf.Raw(ctx, id)
		if err != nil {
			s.logger.Printf("read %s: %v", id, err)
			continue
		}
		s.printf("Record: %s (%d bytes)\n", id, len(raw))
		s.printf("Content: %s\n", raw)
		s.println("---")
	}
}

// export prints every record inside one JSON document for copy and paste.
func (s *Session) export(ctx context.Context) {
	s.println("\n=== EXPORT ===")
	ids, err := s.buf.IDs(ctx)
	if err != nil {
		s.printf("list failed: %v\n", err)
		return
	}
	s.println("--- BEGIN DATA ---")
	s.printf("{\"bikeId\":%q,\"exportTime\":%d,\"scans\":[\n", s.cmds.Config().BikeID, s.cmds.UptimeMillis())
	first := true
	for _, id := range ids {
		raw, err := s.buf.Raw(ctx, id)
		if err != nil {
			s.logger.Printf("read %s: %v", id, err)
			continue
		}
		if !first {
			s.println(",")
		}
		s.printf("%s", raw)
		first = false
	}
	s.println("\n]}")
	s.println("--- END DATA ---")
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
