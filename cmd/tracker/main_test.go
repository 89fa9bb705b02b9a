package main

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

type stubToken struct {
	done bool
	err  error
}

func (t *stubToken) Wait() bool                     { return t.done }
func (t *stubToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *stubToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (t *stubToken) Error() error                   { return t.err }

func TestReportMQTTConnect(t *testing.T) {
	tests := []struct {
		name string
		tok  *stubToken
		want string
	}{
		{name: "connected", tok: &stubToken{done: true}, want: ""},
		{name: "refused", tok: &stubToken{done: true, err: errors.New("connection refused")}, want: "connection refused"},
		{name: "timed out", tok: &stubToken{}, want: "timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			reportMQTTConnect(tt.tok, "tcp://broker:1883", time.Second, log.New(&logs, "", 0))
			if tt.want == "" {
				if logs.Len() != 0 {
					t.Fatalf("expected no log, got %q", logs.String())
				}
				return
			}
			if !strings.Contains(logs.String(), tt.want) || !strings.Contains(logs.String(), "tcp://broker:1883") {
				t.Fatalf("expected log containing %q, got %q", tt.want, logs.String())
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TRACKER_FLAG", "true")
	if !getEnvBool("TRACKER_FLAG", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("TRACKER_FLAG", "nope")
	if getEnvBool("TRACKER_FLAG", false) {
		t.Fatalf("expected fallback on unparsable value")
	}
}
