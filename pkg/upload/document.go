package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/censys/bike-scanner/pkg/scanning"
)

const DefaultPort = 443

// Network is one entry of a document's networks array.
type Network struct {
	SSID    string `json:"ssid"`
	RSSI    int    `json:"rssi"`
	Channel int    `json:"channel"`
}

// Document is the body of a scan upload.
type Document struct {
	Bike      string    `json:"bike"`
	Timestamp int64     `json:"timestamp"`
	Battery   int       `json:"battery"`
	Networks  []Network `json:"networks"`
}

// StatusDocument is the body of a heartbeat.
type StatusDocument struct {
	Bike       string    `json:"bike"`
	Timestamp  int64     `json:"timestamp"`
	Battery    int       `json:"battery"`
	Charging   bool      `json:"charging"`
	Pending    int       `json:"pending"`
	AtBase     bool      `json:"atBase"`
	TimeSynced bool      `json:"timeSynced"`
	UptimeMs   int64     `json:"uptimeMs"`
	Networks   []Network `json:"networks"`
}

// Networks converts the strongest observations to document entries.
func Networks(obs []scanning.Observation) []Network {
	top := scanning.Strongest(obs, scanning.MaxRecordNetworks)
	out := make([]Network, 0, len(top))
	for _, o := range top {
		out = append(out, Network{SSID: o.SSID, RSSI: o.RSSI, Channel: o.Channel})
	}
	return out
}

// Marshal encodes v compactly without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ScanPath is unique per bike and timestamp so uploads never overwrite
// each other.
func ScanPath(bike string, timestamp int64) string {
	return "/bikes/" + bike + "/scans/" + strconv.FormatInt(timestamp, 10) + ".json"
}

func StatusPath(bike string) string {
	return "/bikes/" + bike + "/status.json"
}

// Endpoint is the destination of upload requests.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint reduces a configured endpoint URL to host and port. Any
// scheme and everything from the first slash on are dropped; the port is
// DefaultPort unless the URL names one.
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q has no host", raw)
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{Host: strings.Trim(s, "[]"), Port: DefaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("endpoint %q has invalid port %q", raw, portStr)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q has no host", raw)
	}
	return Endpoint{Host: host, Port: port}, nil
}
