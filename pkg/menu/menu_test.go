package menu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/censys/bike-scanner/pkg/base"
	"github.com/censys/bike-scanner/pkg/buffer"
	"github.com/censys/bike-scanner/pkg/clock"
	"github.com/censys/bike-scanner/pkg/config"
	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/storage"
	"github.com/censys/bike-scanner/pkg/storage/memory"
)

type stubCommands struct {
	cfg        config.Config
	obs        []scanning.Observation
	found      bool
	connect    base.ConnectResult
	uploadSent bool
	uploadErr  error
	uploads    int
}

func (s *stubCommands) ScanNow(context.Context) ([]scanning.Observation, error) { return s.obs, nil }
func (s *stubCommands) TestBase(context.Context) (bool, base.ConnectResult) {
	return s.found, s.connect
}
func (s *stubCommands) TestUpload(context.Context) (bool, error) {
	s.uploads++
	return s.uploadSent, s.uploadErr
}
func (s *stubCommands) Config() config.Config { return s.cfg }
func (s *stubCommands) UptimeMillis() int64   { return 4242 }

type fixture struct {
	out  bytes.Buffer
	cmds *stubCommands
	buf  *buffer.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Bases[0] = scanning.BaseCredential{SSID: "Home", Password: "pw"}
	cfg.RemoteEndpoint = "https://bikes.example.com/"
	cfg.RemoteKey = "abcdefghijklmnopqrstuvwxyz"
	return &fixture{
		cmds: &stubCommands{cfg: cfg},
		buf:  buffer.New(memory.New(), log.New(io.Discard, "", 0)),
	}
}

func (f *fixture) run(t *testing.T, input string) Result {
	t.Helper()
	s := NewSession(NewConsole(strings.NewReader(input)), &f.out, f.cmds, f.buf, nil, log.New(io.Discard, "", 0))
	s.idle = time.Second
	return s.Run(context.Background())
}

func TestQuitLeavesMenu(t *testing.T) {
	f := newFixture(t)
	if res := f.run(t, "q"); res.ConfigMode {
		t.Fatalf("expected plain exit")
	}
	if !strings.Contains(f.out.String(), "=== MENU ===") || !strings.Contains(f.out.String(), "leaving menu") {
		t.Fatalf("unexpected output %q", f.out.String())
	}
}

func TestConfigModeRequest(t *testing.T) {
	f := newFixture(t)
	if res := f.run(t, "7"); !res.ConfigMode {
		t.Fatalf("expected configuration mode request")
	}
}

func TestIdleTimeout(t *testing.T) {
	f := newFixture(t)
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewSession(NewConsole(pr), &f.out, f.cmds, f.buf, nil, log.New(io.Discard, "", 0))
	s.idle = 20 * time.Millisecond

	done := make(chan Result, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case res := <-done:
		if res.ConfigMode {
			t.Fatalf("unexpected config mode")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not time out")
	}
	if !strings.Contains(f.out.String(), "menu idle") {
		t.Fatalf("expected idle notice, got %q", f.out.String())
	}
}

func TestIdleTimeoutOnInjectedClock(t *testing.T) {
	f := newFixture(t)
	pr, pw := io.Pipe()
	defer pw.Close()
	start := time.Unix(1700000000, 0)
	clk := clock.NewFake(start)
	s := NewSession(NewConsole(pr), &f.out, f.cmds, f.buf, clk, log.New(io.Discard, "", 0))

	done := make(chan Result, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not time out on the fake clock")
	}
	if sleeps := clk.Sleeps(); len(sleeps) != 1 || sleeps[0] != IdleTimeout {
		t.Fatalf("expected one %v idle wait, got %v", IdleTimeout, sleeps)
	}
	if got := clk.Now().Sub(start); got != IdleTimeout {
		t.Fatalf("expected clock advanced by %v, got %v", IdleTimeout, got)
	}
	if !strings.Contains(f.out.String(), "menu idle") {
		t.Fatalf("expected idle notice, got %q", f.out.String())
	}
}

func TestNextReturnsBufferedKeyWithoutWaiting(t *testing.T) {
	c := NewConsole(strings.NewReader("5"))
	deadline := time.Now().Add(2 * time.Second)
	for c.Buffered() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	clk := clock.NewFake(time.Unix(0, 0))
	b, err := c.Next(context.Background(), clk, IdleTimeout)
	if err != nil || b != '5' {
		t.Fatalf("expected key 5, got %q err=%v", b, err)
	}
	if len(clk.Sleeps()) != 0 {
		t.Fatalf("expected no wait for a buffered key, got %v", clk.Sleeps())
	}
}

func TestShowConfigTruncatesKey(t *testing.T) {
	f := newFixture(t)
	f.run(t, "4\nq")
	out := f.out.String()
	if !strings.Contains(out, "Key: abcdefghijklmno...") {
		t.Fatalf("expected truncated key, got %q", out)
	}
	if strings.Contains(out, "pqrstuvwxyz") {
		t.Fatalf("full key leaked")
	}
	if !strings.Contains(out, "Base 1: 'Home' / 'pw'") {
		t.Fatalf("expected base listing, got %q", out)
	}
}

func TestMonitorAndBase(t *testing.T) {
	f := newFixture(t)
	f.cmds.obs = []scanning.Observation{{SSID: "Cafe", RSSI: -61, Channel: 11}}
	f.cmds.found = true
	f.cmds.connect = base.ConnectResult{Success: true, SSID: "Home", Address: "192.168.1.9"}
	f.run(t, "12q")
	out := f.out.String()
	if !strings.Contains(out, "Cafe | -61 dBm | channel 11") {
		t.Fatalf("expected network listing, got %q", out)
	}
	if !strings.Contains(out, "address: 192.168.1.9") {
		t.Fatalf("expected connection report, got %q", out)
	}
}

func TestUploadTest(t *testing.T) {
	f := newFixture(t)
	f.cmds.uploadErr = errors.New("no base in range")
	f.run(t, "3q")
	if f.cmds.uploads != 1 || !strings.Contains(f.out.String(), "upload test failed: no base in range") {
		t.Fatalf("unexpected output %q", f.out.String())
	}

	f = newFixture(t)
	f.cmds.cfg.RemoteEndpoint = ""
	f.run(t, "3q")
	if f.cmds.uploads != 0 || !strings.Contains(f.out.String(), "not configured") {
		t.Fatalf("expected no upload without endpoint")
	}
}

func TestRecordsAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		if _, err := f.buf.Append(ctx, storage.ScanRecord{CaptureMillis: int64(i), Battery: 50}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	f.run(t, "5q")
	if got := strings.Count(f.out.String(), "Record: scan_"); got != recordPreview {
		t.Fatalf("expected %d previews, got %d", recordPreview, got)
	}

	f.out.Reset()
	f.run(t, "6q")
	out := f.out.String()
	start := strings.Index(out, "--- BEGIN DATA ---\n")
	end := strings.Index(out, "--- END DATA ---")
	if start < 0 || end < 0 {
		t.Fatalf("missing export markers in %q", out)
	}
	var doc struct {
		BikeID     string            `json:"bikeId"`
		ExportTime int64             `json:"exportTime"`
		Scans      []json.RawMessage `json:"scans"`
	}
	if err := json.Unmarshal([]byte(out[start+len("--- BEGIN DATA ---\n"):end]), &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc.BikeID != "sl01" || doc.ExportTime != 4242 || len(doc.Scans) != 7 {
		t.Fatalf("unexpected export %+v", doc)
	}
}

func TestConsolePoll(t *testing.T) {
	c := NewConsole(strings.NewReader("\r\nm"))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b, ok := c.Poll(); ok {
			if b != 'm' {
				t.Fatalf("expected m, got %q", b)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no key polled")
}
