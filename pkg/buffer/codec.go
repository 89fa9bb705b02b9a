package buffer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/censys/bike-scanner/pkg/scanning"
	"github.com/censys/bike-scanner/pkg/storage"
)

// Encode writes r in the current positional layout:
//
//	[captureMillis,0,battery,charging,[[ssid,bssid,rssi,channel],...]]
//
// At most scanning.MaxRecordNetworks networks are written, in record order.
func Encode(r storage.ScanRecord) ([]byte, error) {
	nets := r.Networks
	if len(nets) > scanning.MaxRecordNetworks {
		nets = nets[:scanning.MaxRecordNetworks]
	}
	rows := make([][]any, 0, len(nets))
	for _, n := range nets {
		rows = append(rows, []any{n.SSID, n.BSSID, n.RSSI, n.Channel})
	}
	doc := []any{r.CaptureMillis, r.RealTime, r.Battery, r.Charging, rows}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a stored record, telling layouts apart by arity. Arrays
// longer than the current layout are read as the current layout with the
// extra trailing fields ignored.
func Decode(raw []byte) (storage.ScanRecord, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return storage.ScanRecord{}, fmt.Errorf("unmarshal record: %w", err)
	}
	switch version(len(fields)) {
	case scanning.V0:
		return decodeV0(fields)
	case scanning.V1:
		return decodeV1(fields)
	default:
		return storage.ScanRecord{}, fmt.Errorf("unsupported record layout with %d fields", len(fields))
	}
}

func version(arity int) int {
	switch {
	case arity == 3:
		return scanning.V0
	case arity >= 5:
		return scanning.V1
	default:
		return -1
	}
}

func decodeV0(f []json.RawMessage) (storage.ScanRecord, error) {
	var r storage.ScanRecord
	if err := json.Unmarshal(f[0], &r.CaptureMillis); err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v0 capture time: %w", err)
	}
	if err := json.Unmarshal(f[1], &r.RealTime); err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v0 real time: %w", err)
	}
	nets, err := decodeNetworks(f[2])
	if err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v0 networks: %w", err)
	}
	r.Networks = nets
	return r, nil
}

func decodeV1(f []json.RawMessage) (storage.ScanRecord, error) {
	var r storage.ScanRecord
	if err := json.Unmarshal(f[0], &r.CaptureMillis); err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v1 capture time: %w", err)
	}
	if err := json.Unmarshal(f[1], &r.RealTime); err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v1 real time: %w", err)
	}
	if err := json.Unmarshal(f[2], &r.Battery); err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v1 battery: %w", err)
	}
	if err := json.Unmarshal(f[3], &r.Charging); err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v1 charging: %w", err)
	}
	nets, err := decodeNetworks(f[4])
	if err != nil {
		return storage.ScanRecord{}, fmt.Errorf("decode v1 networks: %w", err)
	}
	r.Networks = nets
	return r, nil
}

func decodeNetworks(raw json.RawMessage) ([]scanning.Observation, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	if len(rows) > scanning.MaxRecordNetworks {
		return nil, fmt.Errorf("%d networks, max %d", len(rows), scanning.MaxRecordNetworks)
	}
	out := make([]scanning.Observation, 0, len(rows))
	for i, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("network %d: %d fields, want 4", i, len(row))
		}
		var n scanning.Observation
		errs := []error{
			json.Unmarshal(row[0], &n.SSID),
			json.Unmarshal(row[1], &n.BSSID),
			json.Unmarshal(row[2], &n.RSSI),
			json.Unmarshal(row[3], &n.Channel),
		}
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("network %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}
