package scanning

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// MaxSSIDLen is the longest SSID a radio may report (802.11 limit).
	MaxSSIDLen = 32
	// MaxBSSIDLen fits the colon-separated form aa:bb:cc:dd:ee:ff.
	MaxBSSIDLen = 17
	// MaxObservations caps how many networks one scan keeps.
	MaxObservations = 30
	// MaxRecordNetworks caps how many networks a record or upload carries.
	MaxRecordNetworks = 5
)

// ErrTooLong is returned when a bounded field exceeds its limit.
var ErrTooLong = errors.New("value exceeds bound")

// Encryption is the security mode advertised by an access point.
type Encryption int

const (
	EncryptionUnknown Encryption = iota
	EncryptionOpen
	EncryptionWEP
	EncryptionWPA
	EncryptionWPA2
	EncryptionWPA3
	EncryptionAuto
)

func (e Encryption) String() string {
	switch e {
	case EncryptionOpen:
		return "open"
	case EncryptionWEP:
		return "wep"
	case EncryptionWPA:
		return "wpa"
	case EncryptionWPA2:
		return "wpa2"
	case EncryptionWPA3:
		return "wpa3"
	case EncryptionAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// Observation is one access point seen during a scan. The observation set is
// replaced wholesale every scan.
type Observation struct {
	SSID       string
	BSSID      string
	RSSI       int
	Channel    int
	Encryption Encryption
}

// NewObservation validates the bounded fields and builds an Observation.
func NewObservation(ssid, bssid string, rssi, channel int, enc Encryption) (Observation, error) {
	s, err := Bounded("ssid", ssid, MaxSSIDLen)
	if err != nil {
		return Observation{}, err
	}
	b, err := Bounded("bssid", bssid, MaxBSSIDLen)
	if err != nil {
		return Observation{}, err
	}
	return Observation{SSID: s, BSSID: b, RSSI: rssi, Channel: channel, Encryption: enc}, nil
}

// Bounded returns s unchanged when it fits in max bytes and ErrTooLong
// otherwise.
func Bounded(field, s string, max int) (string, error) {
	if len(s) > max {
		return "", fmt.Errorf("%s %q (%d bytes, max %d): %w", field, s, len(s), max, ErrTooLong)
	}
	return s, nil
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence and
// reports whether anything was dropped.
func Truncate(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Strongest returns up to n observations ordered by descending RSSI. Ties keep
// scan order. The input slice is not modified.
func Strongest(obs []Observation, n int) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
