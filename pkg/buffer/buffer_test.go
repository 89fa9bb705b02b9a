package buffer

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/storage"
	"github.com/censys/bike-scanner/pkg/storage/memory"
)

func newTestBuffer(t *testing.T) (*Buffer, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, log.New(io.Discard, "", 0)), store
}

func TestAppendCountForEach(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuffer(t)

	ids := make([]RecordID, 0, 3)
	for i := int64(1); i <= 3; i++ {
		id, err := b.Append(ctx, storage.ScanRecord{CaptureMillis: i * 1000, Battery: int(i)})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		ids = append(ids, id)
	}
	if ids[0] != "scan_1000.json" {
		t.Fatalf("unexpected id %q", ids[0])
	}

	n, err := b.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 records, got %d (%v)", n, err)
	}

	var seen []int
	err = b.ForEachPending(ctx, func(id RecordID, r storage.ScanRecord) error {
		seen = append(seen, r.Battery)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachPending: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected walk order: %v", seen)
	}
}

func TestAppendSameMillisDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuffer(t)
	first, err := b.Append(ctx, storage.ScanRecord{CaptureMillis: 42, Battery: 1})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := b.Append(ctx, storage.ScanRecord{CaptureMillis: 42, Battery: 2})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ids, both %q", first)
	}
	if n, _ := b.Count(ctx); n != 2 {
		t.Fatalf("expected 2 records, got %d", n)
	}
}

func TestForEachSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBuffer(t)
	_ = store.Write(ctx, "scan_1.json", []byte("not json"))
	if _, err := b.Append(ctx, storage.ScanRecord{CaptureMillis: 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	calls := 0
	if err := b.ForEachPending(ctx, func(RecordID, storage.ScanRecord) error { calls++; return nil }); err != nil {
		t.Fatalf("ForEachPending: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 decodable record, got %d", calls)
	}
	if n, _ := b.Count(ctx); n != 2 {
		t.Fatalf("corrupt record must stay stored, count=%d", n)
	}
}

func TestForEachStopsOnError(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuffer(t)
	_, _ = b.Append(ctx, storage.ScanRecord{CaptureMillis: 1})
	_, _ = b.Append(ctx, storage.ScanRecord{CaptureMillis: 2})
	stop := errors.New("stop")
	calls := 0
	err := b.ForEachPending(ctx, func(RecordID, storage.ScanRecord) error { calls++; return stop })
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected walk to stop after first record, calls=%d err=%v", calls, err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	b, store := newTestBuffer(t)
	_ = store.Write(ctx, "bike.txt", []byte("sl01"))
	id, _ := b.Append(ctx, storage.ScanRecord{CaptureMillis: 1})
	_, _ = b.Append(ctx, storage.ScanRecord{CaptureMillis: 2})
	_, _ = b.Append(ctx, storage.ScanRecord{CaptureMillis: 3})

	if err := b.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, id); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if err := b.Delete(ctx, "bike.txt"); err == nil {
		t.Fatalf("expected refusal to delete config blob")
	}

	cleared, err := b.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared, got %d", cleared)
	}
	if n, _ := b.Count(ctx); n != 0 {
		t.Fatalf("expected empty buffer, got %d", n)
	}
	if _, err := store.Read(ctx, "bike.txt"); err != nil {
		t.Fatalf("config blob must survive Clear: %v", err)
	}
}

func TestNewRecordKeepsStrongestFive(t *testing.T) {
	obs := []scanning.Observation{
		{SSID: "a", RSSI: -90}, {SSID: "b", RSSI: -30}, {SSID: "c", RSSI: -60},
		{SSID: "d", RSSI: -50}, {SSID: "e", RSSI: -80}, {SSID: "f", RSSI: -40},
	}
	r := NewRecord(9, 87.9, true, obs)
	if r.Battery != 87 || !r.Charging || r.CaptureMillis != 9 || r.RealTime != 0 {
		t.Fatalf("unexpected telemetry: %+v", r)
	}
	if len(r.Networks) != 5 || r.Networks[0].SSID != "b" || r.Networks[4].SSID != "e" {
		t.Fatalf("unexpected networks: %+v", r.Networks)
	}
}

func TestIDs(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuffer(t)
	_, _ = b.Append(ctx, storage.ScanRecord{CaptureMillis: 20})
	_, _ = b.Append(ctx, storage.ScanRecord{CaptureMillis: 10})
	ids, err := b.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "scan_10.json" || ids[1] != "scan_20.json" {
		t.Fatalf("unexpected ids %v", ids)
	}
	raw, err := b.Raw(ctx, ids[0])
	if err != nil || string(raw) != `[10,0,0,false,[]]` {
		t.Fatalf("unexpected raw %s (%v)", raw, err)
	}
}
