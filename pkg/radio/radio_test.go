package radio

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
)

func TestNMCLIParseScan(t *testing.T) {
	out := "BaseX:AA\\:BB\\:CC\\:DD\\:EE\\:01:80:6:WPA2\n" +
		"Cafe\\:Guest:AA\\:BB\\:CC\\:DD\\:EE\\:02:30:11:\n" +
		"broken-line\n"
	var calls [][]string
	n := NewNMCLI("wlan0", func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return []byte(out), nil
	}, log.New(io.Discard, "", 0))

	obs, err := n.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].SSID != "BaseX" || obs[0].BSSID != "aa:bb:cc:dd:ee:01" || obs[0].RSSI != -60 || obs[0].Channel != 6 {
		t.Fatalf("unexpected first observation: %+v", obs[0])
	}
	if obs[1].SSID != "Cafe:Guest" || obs[1].RSSI != -85 {
		t.Fatalf("unexpected second observation: %+v", obs[1])
	}
	if got := strings.Join(calls[0], " "); !strings.Contains(got, "ifname wlan0") {
		t.Fatalf("expected interface in command, got %q", got)
	}
}

func TestNMCLIParseStatus(t *testing.T) {
	st := parseStatus([]byte("GENERAL.STATE:100 (connected)\nIP4.ADDRESS[1]:192.168.4.20/24\nIP4.GATEWAY:192.168.4.1\n"))
	if !st.Connected || st.Address != "192.168.4.20" || st.Gateway != "192.168.4.1" {
		t.Fatalf("unexpected status: %+v", st)
	}
	if parseStatus([]byte("GENERAL.STATE:30 (disconnected)\n")).Connected {
		t.Fatalf("expected disconnected")
	}
}

func TestSimJoinAfterPolls(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(Scenario{
		Scans: [][]SimNetwork{{{SSID: "BaseX", RSSI: -50}}, {{SSID: "Other", RSSI: -40}}},
		APs:   map[string]SimAP{"BaseX": {Password: "pw", Address: "10.0.0.2", JoinPolls: 2}},
	})

	if err := sim.Join(ctx, "BaseX", "wrong"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	for i := 0; i < 5; i++ {
		if sim.Status(ctx).Connected {
			t.Fatalf("wrong password must never connect")
		}
	}

	_ = sim.Join(ctx, "BaseX", "pw")
	if sim.Status(ctx).Connected || sim.Status(ctx).Connected {
		t.Fatalf("expected two pending polls")
	}
	st := sim.Status(ctx)
	if !st.Connected || st.Address != "10.0.0.2" {
		t.Fatalf("expected connection on third poll, got %+v", st)
	}

	first, _ := sim.Scan(ctx)
	second, _ := sim.Scan(ctx)
	third, _ := sim.Scan(ctx)
	if first[0].SSID != "BaseX" || second[0].SSID != "Other" || third[0].SSID != "Other" {
		t.Fatalf("unexpected replay order")
	}
}
