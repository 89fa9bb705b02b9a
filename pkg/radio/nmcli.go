package radio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"github.com/censys/bike-scanner/pkg/scanning"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// NMCLI drives a NetworkManager-managed interface through the nmcli tool.
type NMCLI struct {
	Iface  string
	run    Runner
	logger *log.Logger
}

// NewNMCLI returns a radio bound to iface. A nil runner uses os/exec and a
// nil logger uses log.Default().
func NewNMCLI(iface string, run Runner, logger *log.Logger) *NMCLI {
	if run == nil {
		run = execRunner
	}
	if logger == nil {
		logger = log.Default()
	}
	return &NMCLI{Iface: iface, run: run, logger: logger}
}

func (n *NMCLI) Scan(ctx context.Context) ([]scanning.Observation, error) {
	out, err := n.run(ctx, "nmcli", "-t", "-f", "SSID,BSSID,SIGNAL,CHAN,SECURITY",
		"device", "wifi", "list", "--rescan", "yes", "ifname", n.Iface)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return n.parseScan(out), nil
}

func (n *NMCLI) parseScan(out []byte) []scanning.Observation {
	var obs []scanning.Observation
	for _, line := range strings.Split(string(out), "\n") {
		if line == "" {
			continue
		}
		if len(obs) == scanning.MaxObservations {
			break
		}
		f := splitTerse(line)
		if len(f) != 5 {
			n.logger.Printf("nmcli: skipping malformed scan line %q", line)
			continue
		}
		quality, err := strconv.Atoi(f[2])
		if err != nil {
			n.logger.Printf("nmcli: bad signal %q", f[2])
			continue
		}
		channel, _ := strconv.Atoi(f[3])
		ssid, cut := scanning.Truncate(f[0], scanning.MaxSSIDLen)
		if cut {
			n.logger.Printf("nmcli: ssid truncated to %q", ssid)
		}
		bssid, cut := scanning.Truncate(strings.ToLower(f[1]), scanning.MaxBSSIDLen)
		if cut {
			n.logger.Printf("nmcli: bssid truncated to %q", bssid)
		}
		obs = append(obs, scanning.Observation{
			SSID:       ssid,
			BSSID:      bssid,
			RSSI:       QualityToDBm(quality),
			Channel:    channel,
			Encryption: parseSecurity(f[4]),
		})
	}
	return obs
}

// Join asks NetworkManager to connect without waiting for completion.
func (n *NMCLI) Join(ctx context.Context, ssid, password string) error {
	args := []string{"-w", "0", "device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", n.Iface)
	if _, err := n.run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("join %s: %w", ssid, err)
	}
	return nil
}

func (n *NMCLI) Status(ctx context.Context) Status {
	out, err := n.run(ctx, "nmcli", "-t", "-f", "GENERAL.STATE,IP4.ADDRESS,IP4.GATEWAY", "device", "show", n.Iface)
	if err != nil {
		return Status{}
	}
	return parseStatus(out)
}

func (n *NMCLI) Disconnect(ctx context.Context) error {
	if _, err := n.run(ctx, "nmcli", "device", "disconnect", n.Iface); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

func parseStatus(out []byte) Status {
	var st Status
	for _, line := range strings.Split(string(out), "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch {
		case key == "GENERAL.STATE":
			// "100 (connected)"
			code, _, _ := strings.Cut(val, " ")
			st.Connected = code == "100"
		case strings.HasPrefix(key, "IP4.ADDRESS") && st.Address == "":
			addr, _, _ := strings.Cut(val, "/")
			st.Address = addr
		case key == "IP4.GATEWAY":
			st.Gateway = val
		}
	}
	return st
}

// QualityToDBm maps NetworkManager's 0-100 signal quality onto dBm using the
// usual linear approximation (0 -> -100 dBm, 100 -> -50 dBm).
func QualityToDBm(q int) int {
	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	return q/2 - 100
}

func parseSecurity(s string) scanning.Encryption {
	switch {
	case s == "" || s == "--":
		return scanning.EncryptionOpen
	case strings.Contains(s, "WPA3"):
		return scanning.EncryptionWPA3
	case strings.Contains(s, "WPA2"):
		return scanning.EncryptionWPA2
	case strings.Contains(s, "WPA"):
		return scanning.EncryptionWPA
	case strings.Contains(s, "WEP"):
		return scanning.EncryptionWEP
	default:
		return scanning.EncryptionUnknown
	}
}

// splitTerse splits one line of nmcli terse output, where literal colons
// and backslashes inside values are escaped with a backslash.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}
