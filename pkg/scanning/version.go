package scanning

// Layout versions of persisted scan records. Records carry no explicit
// version field; the decoder tells them apart by array arity.
const (
	// V0 is [captureMillis, realTime, networks] written by older firmware
	// that did not sample the battery.
	V0 = 0
	// V1 is [captureMillis, realTime, battery, charging, networks].
	V1 = 1

	Current = V1
)
