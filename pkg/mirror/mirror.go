// Package mirror fans accepted upload documents out to secondary sinks.
// Mirroring is best-effort: a failed mirror never affects the upload that
// produced the document.
package mirror

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/censys/bike-scanner/pkg/scanning"
)

const (
	KindScan   = "scan"
	KindStatus = "status"
)

// Message is one document the remote endpoint accepted.
type Message struct {
	Kind      string
	Bike      string
	SessionID string
	Path      string
	// Timestamp is the value written into the document: epoch seconds
	// when time was synchronized, device uptime in milliseconds otherwise.
	Timestamp int64
	Synced    bool
	Time      time.Time
	Battery   int
	Networks  []scanning.Observation
	Payload   []byte
}

// Publisher delivers a Message to one sink.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Noop is used when no sink is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Message) error { return nil }

// Multi publishes to every sink in order. All sinks are attempted; the
// returned error joins the individual failures.
type Multi struct {
	sinks  []namedSink
	logger *log.Logger
}

type namedSink struct {
	name string
	pub  Publisher
}

func NewMulti(logger *log.Logger) *Multi {
	if logger == nil {
		logger = log.Default()
	}
	return &Multi{logger: logger}
}

// Add registers a sink under name, used in log lines.
func (m *Multi) Add(name string, p Publisher) {
	m.sinks = append(m.sinks, namedSink{name: name, pub: p})
}

// Len is the number of registered sinks.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.pub.Publish(ctx, msg); err != nil {
			m.logger.Printf("mirror %s failed path=%s: %v", s.name, msg.Path, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
