package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/storage/memory"
)

func TestLoadMissingFilesGivesDefaults(t *testing.T) {
	cfg, err := NewStore(memory.New()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	s := NewStore(blobs)
	want := Config{
		BikeID:             "sl07",
		ScanTimeActiveMs:   4000,
		ScanTimeInactiveMs: 60000,
		Bases: scanning.Bases{
			{SSID: "Garage", Password: "secret"},
			{},
			{SSID: "Depot", Password: ""},
		},
		RemoteEndpoint: "https://bikes.example.firebaseio.com/",
		RemoteKey:      "k3y",
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := blobs.Read(ctx, "bases.txt")
	if err != nil {
		t.Fatalf("read bases: %v", err)
	}
	if string(raw) != "Garage\nsecret\n\n\nDepot\n" {
		t.Fatalf("unexpected bases file %q", raw)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestValidateRejectsOversizeFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bike id", mutate: func(c *Config) { c.BikeID = "bike-0000001" }},
		{name: "empty bike id", mutate: func(c *Config) { c.BikeID = " " }},
		{name: "bike id with slash", mutate: func(c *Config) { c.BikeID = "a/b" }},
		{name: "ssid", mutate: func(c *Config) { c.Bases[1].SSID = strings.Repeat("s", 32) }},
		{name: "zero interval", mutate: func(c *Config) { c.ScanTimeActiveMs = 0 }},
		{name: "endpoint", mutate: func(c *Config) { c.RemoteEndpoint = strings.Repeat("e", 128) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if err := NewStore(memory.New()).Save(context.Background(), cfg); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected Save to reject, got %v", err)
			}
		})
	}
}

func writeFiles(t *testing.T, blobs *memory.Store, files map[string]string) {
	t.Helper()
	for name, body := range files {
		if err := blobs.Write(context.Background(), name, []byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestLoadBadFileKeepsOtherFiles(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  Config
	}{
		{
			name: "bad timing",
			files: map[string]string{
				"bike.txt":     "bk42",
				"timing.txt":   "5000\nabc",
				"bases.txt":    "HomeBase\nsecret\n\n\n\n",
				"firebase.txt": "bikes.example.com\nk3y",
			},
			want: Config{
				BikeID:             "bk42",
				ScanTimeActiveMs:   5000,
				ScanTimeInactiveMs: 30000,
				Bases:              scanning.Bases{{SSID: "HomeBase", Password: "secret"}},
				RemoteEndpoint:     "bikes.example.com",
				RemoteKey:          "k3y",
			},
		},
		{
			name: "oversize bike id",
			files: map[string]string{
				"bike.txt":     "bike-00001",
				"timing.txt":   "4000\n60000",
				"bases.txt":    "HomeBase\nsecret",
				"firebase.txt": "bikes.example.com\nk3y",
			},
			want: Config{
				BikeID:             "sl01",
				ScanTimeActiveMs:   4000,
				ScanTimeInactiveMs: 60000,
				Bases:              scanning.Bases{{SSID: "HomeBase", Password: "secret"}},
				RemoteEndpoint:     "bikes.example.com",
				RemoteKey:          "k3y",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := memory.New()
			writeFiles(t, blobs, tt.files)
			cfg, err := NewStore(blobs).Load(context.Background())
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if cfg != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, cfg)
			}
		})
	}
}
