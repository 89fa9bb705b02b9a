package buffer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/storage"
)

// Prefix marks scan records in the blob namespace.
const Prefix = "scan_"

// RecordID is the blob name of a stored record.
type RecordID string

// Buffer owns the lifecycle of ScanRecords: it is the only writer and the
// only deleter of scan_ blobs.
type Buffer struct {
	store  storage.Store
	logger *log.Logger
}

// New wraps store. A nil logger uses log.Default().
func New(store storage.Store, logger *log.Logger) *Buffer {
	if logger == nil {
		logger = log.Default()
	}
	return &Buffer{store: store, logger: logger}
}

// NewRecord builds the record for one scan: the strongest networks, the
// battery state and the device clock. RealTime is reserved and stays zero.
func NewRecord(captureMillis int64, batteryPct float64, charging bool, obs []scanning.Observation) storage.ScanRecord {
	return storage.ScanRecord{
		CaptureMillis: captureMillis,
		Battery:       int(batteryPct),
		Charging:      charging,
		Networks:      scanning.Strongest(obs, scanning.MaxRecordNetworks),
	}
}

// Append persists r under a fresh name derived from its capture time.
func (b *Buffer) Append(ctx context.Context, r storage.ScanRecord) (RecordID, error) {
	data, err := Encode(r)
	if err != nil {
		return "", err
	}
	id, err := b.freeName(ctx, r.CaptureMillis)
	if err != nil {
		return "", err
	}
	if err := b.store.Write(ctx, string(id), data); err != nil {
		return "", fmt.Errorf("append %s: %w", id, err)
	}
	return id, nil
}

func (b *Buffer) freeName(ctx context.Context, captureMillis int64) (RecordID, error) {
	base := Prefix + strconv.FormatInt(captureMillis, 10)
	names, err := b.store.List(ctx, base)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", base, err)
	}
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	name := base + ".json"
	for i := 1; taken[name]; i++ {
		name = base + "_" + strconv.Itoa(i) + ".json"
	}
	return RecordID(name), nil
}

// Count returns the number of stored records.
func (b *Buffer) Count(ctx context.Context) (int, error) {
	names, err := b.store.List(ctx, Prefix)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return len(names), nil
}

// IDs lists stored record ids in name order.
func (b *Buffer) IDs(ctx context.Context) ([]RecordID, error) {
	names, err := b.store.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	ids := make([]RecordID, len(names))
	for i, n := range names {
		ids[i] = RecordID(n)
	}
	return ids, nil
}

// ForEachPending calls fn for every decodable record in name order.
// Undecodable records are logged and skipped; they stay in storage. A
// non-nil error from fn stops the walk and is returned.
func (b *Buffer) ForEachPending(ctx context.Context, fn func(RecordID, storage.ScanRecord) error) error {
	names, err := b.store.List(ctx, Prefix)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	for _, name := range names {
		raw, err := b.store.Read(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		rec, err := Decode(raw)
		if err != nil {
			b.logger.Printf("skipping undecodable record %s: %v", name, err)
			continue
		}
		if err := fn(RecordID(name), rec); err != nil {
			return err
		}
	}
	return nil
}

// Raw returns the stored bytes of one record. Ids outside the record
// namespace are reported as not found.
func (b *Buffer) Raw(ctx context.Context, id RecordID) ([]byte, error) {
	if !strings.HasPrefix(string(id), Prefix) {
		return nil, fmt.Errorf("record %q: %w", id, storage.ErrNotFound)
	}
	return b.store.Read(ctx, string(id))
}

// Delete removes one record. Deleting an unknown id is not an error.
func (b *Buffer) Delete(ctx context.Context, id RecordID) error {
	if !strings.HasPrefix(string(id), Prefix) {
		return fmt.Errorf("refusing to delete non-record blob %q", id)
	}
	err := b.store.Delete(ctx, string(id))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Clear deletes every record currently stored and returns how many were
// removed. Records written concurrently with Clear may be removed too.
func (b *Buffer) Clear(ctx context.Context) (int, error) {
	names, err := b.store.List(ctx, Prefix)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	cleared := 0
	var errs []error
	for _, name := range names {
		if err := b.Delete(ctx, RecordID(name)); err != nil {
			errs = append(errs, err)
			continue
		}
		cleared++
		b.logger.Printf("removed %s", name)
	}
	return cleared, errors.Join(errs...)
}
