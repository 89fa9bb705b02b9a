package storage

import (
	"context"
	"errors"

	"github.com/censys/bike-scanner/pkg/scanning"
)

// ErrNotFound is returned by Read and Delete for unknown names.
var ErrNotFound = errors.New("blob not found")

// ScanRecord is one persisted snapshot of observed networks plus telemetry.
// Once written it is never updated, only deleted.
type ScanRecord struct {
	CaptureMillis int64
	RealTime      int64
	Battery       int
	Charging      bool
	Networks      []scanning.Observation
}

// Store is a flat namespace of named blobs. Write replaces the whole blob in
// one step; readers never observe a partial write.
type Store interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
	// List returns the names starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
