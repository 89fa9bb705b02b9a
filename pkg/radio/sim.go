package radio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/censys/bike-scanner/pkg/scanning"
)

// SimAP is an access point the simulated radio can join.
type SimAP struct {
	Password string `json:"password"`
	Address  string `json:"address"`
	Gateway  string `json:"gateway"`
	// JoinPolls is how many Status calls report "not connected" before the
	// association completes. Negative never completes.
	JoinPolls int `json:"joinPolls"`
}

// SimNetwork is the scenario form of one observation.
type SimNetwork struct {
	SSID    string `json:"ssid"`
	BSSID   string `json:"bssid"`
	RSSI    int    `json:"rssi"`
	Channel int    `json:"channel"`
}

// Scenario scripts a simulated radio. Scans are replayed in order and the
// last one repeats forever.
type Scenario struct {
	Scans [][]SimNetwork   `json:"scans"`
	APs   map[string]SimAP `json:"aps"`
}

// Sim is a scripted radio for benches, demos and tests.
type Sim struct {
	mu        sync.Mutex
	scenario  Scenario
	scanIdx   int
	joining   string
	password  string
	polls     int
	connected bool
	joins     []string
}

func NewSim(sc Scenario) *Sim {
	return &Sim{scenario: sc}
}

// LoadScenario reads a JSON scenario file.
func LoadScenario(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(b, &sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	return sc, nil
}

func (s *Sim) Scan(ctx context.Context) ([]scanning.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scenario.Scans) == 0 {
		return nil, nil
	}
	idx := s.scanIdx
	if idx >= len(s.scenario.Scans) {
		idx = len(s.scenario.Scans) - 1
	} else {
		s.scanIdx++
	}
	var out []scanning.Observation
	for _, n := range s.scenario.Scans[idx] {
		if len(out) == scanning.MaxObservations {
			break
		}
		obs, err := scanning.NewObservation(n.SSID, n.BSSID, n.RSSI, n.Channel, scanning.EncryptionWPA2)
		if err != nil {
			return nil, fmt.Errorf("scenario scan %d: %w", idx, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

func (s *Sim) Join(ctx context.Context, ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joining = ssid
	s.password = password
	s.polls = 0
	s.connected = false
	s.joins = append(s.joins, ssid)
	return nil
}

func (s *Sim) Status(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	ap, ok := s.scenario.APs[s.joining]
	if s.joining == "" || !ok || ap.Password != s.password {
		return Status{}
	}
	if !s.connected {
		if ap.JoinPolls < 0 || s.polls < ap.JoinPolls {
			s.polls++
			return Status{}
		}
		s.connected = true
	}
	return Status{Connected: true, Address: ap.Address, Gateway: ap.Gateway}
}

func (s *Sim) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joining = ""
	s.password = ""
	s.connected = false
	return nil
}

// Joins lists every SSID passed to Join, in order.
func (s *Sim) Joins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.joins))
	copy(out, s.joins)
	return out
}
