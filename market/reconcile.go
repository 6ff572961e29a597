package market

// Flag is a boolean fed by two sources: a provisional value set after a local
// command succeeds, and the authoritative value read from the server. The next
// authoritative read always replaces a provisional value.
type Flag struct {
	server      bool
	known       bool
	provisional bool
	pending     bool
}

func (f *Flag) SetProvisional(v bool) {
	f.provisional = v
	f.pending = true
}

func (f *Flag) SetAuthoritative(v bool) {
	f.server = v
	f.known = true
	f.pending = false
}

func (f Flag) Value() bool {
	if f.pending {
		return f.provisional
	}
	return f.server
}

// Provisional reports whether the value has not been confirmed by the server yet.
func (f Flag) Provisional() bool {
	return f.pending
}

// Known reports whether at least one authoritative read happened.
func (f Flag) Known() bool {
	return f.known
}
