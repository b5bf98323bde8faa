// Package button implements the stop button's debouncer: a raw level
// only becomes the reported level once it has held steady for 30ms,
// filtering switch bounce without missing a real press.
package button

import "time"

// SettleDuration is the sustained-level window a raw reading must hold
// before it is accepted as the button's new state.
const SettleDuration = 30 * time.Millisecond

// InputPin is the sliver of a GPIO input pin the debouncer needs.
type InputPin interface {
	Read() (pressed bool, err error)
}

// Debouncer tracks a single pin's raw readings and reports only stable
// transitions.
type Debouncer struct {
	pin InputPin

	stable   bool
	candidate bool
	since    time.Time
	haveSeen bool
}

// New wraps pin in a debouncer. The initial stable state is assumed
// released until the first Poll.
func New(pin InputPin) *Debouncer {
	return &Debouncer{pin: pin}
}

// Poll samples the pin and returns the debounced level plus whether it
// just changed from the previously reported stable level. Errors
// reading the pin are treated as "no change" — the debouncer holds its
// last known-good state rather than flapping on a transient I/O error.
func (d *Debouncer) Poll(now time.Time) (pressed bool, edge bool) {
	raw, err := d.pin.Read()
	if err != nil {
		return d.stable, false
	}

	if !d.haveSeen {
		d.haveSeen = true
		d.stable = raw
		d.candidate = raw
		d.since = now
		return d.stable, false
	}

	if raw != d.candidate {
		d.candidate = raw
		d.since = now
		return d.stable, false
	}

	if d.candidate != d.stable && now.Sub(d.since) >= SettleDuration {
		d.stable = d.candidate
		return d.stable, true
	}

	return d.stable, false
}

// Pressed reports the last debounced level without sampling the pin.
func (d *Debouncer) Pressed() bool { return d.stable }
