package scanning

// MaxCredentialLen matches the fixed slots of the persisted base list.
const MaxCredentialLen = 31

// BaseCredential is one registered base network.
type BaseCredential struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Bases holds the three base slots. Slots with an empty SSID are unused.
type Bases [3]BaseCredential

// Configured reports whether at least one slot has an SSID.
func (b Bases) Configured() bool {
	for _, c := range b {
		if c.SSID != "" {
			return true
		}
	}
	return false
}

// Lookup returns the credential whose SSID equals ssid exactly. Empty slots
// never match, including for hidden networks reporting an empty SSID.
func (b Bases) Lookup(ssid string) (BaseCredential, bool) {
	if ssid == "" {
		return BaseCredential{}, false
	}
	for _, c := range b {
		if c.SSID != "" && c.SSID == ssid {
			return c, true
		}
	}
	return BaseCredential{}, false
}
