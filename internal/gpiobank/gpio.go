// Package gpiobank wires the physical buzzer and stop-button pins
// through periph.io, presenting them as the minimal interfaces
// internal/pwm and internal/button actually need rather than leaking
// periph's own types into the rest of the device.
package gpiobank

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Bank owns every GPIO pin the device drives directly: one output per
// buzzer, and one input for the stop button.
type Bank struct {
	buzzers []gpio.PinIO
	stop    gpio.PinIO
}

// Open initializes periph's host drivers and resolves buzzerPins (in
// buzzer index order) plus stopPin by name (e.g. "GPIO4", "P1_7" —
// whatever periph's registry calls them on the target board).
func Open(buzzerPins []string, stopPin string) (*Bank, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpiobank: host.Init: %w", err)
	}

	b := &Bank{buzzers: make([]gpio.PinIO, len(buzzerPins))}
	for i, name := range buzzerPins {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpiobank: unknown buzzer pin %q", name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("gpiobank: configure buzzer pin %q: %w", name, err)
		}
		b.buzzers[i] = p
	}

	sp := gpioreg.ByName(stopPin)
	if sp == nil {
		return nil, fmt.Errorf("gpiobank: unknown stop pin %q", stopPin)
	}
	if err := sp.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("gpiobank: configure stop pin %q: %w", stopPin, err)
	}
	b.stop = sp

	return b, nil
}

// BuzzerOutputs returns adapters satisfying internal/pwm.OutputPin, one
// per buzzer, in buzzer-index order.
func (b *Bank) BuzzerOutputs() []OutputPin {
	out := make([]OutputPin, len(b.buzzers))
	for i, p := range b.buzzers {
		out[i] = OutputPin{pin: p}
	}
	return out
}

// StopButton returns an adapter satisfying internal/button.InputPin for
// the stop button, active-low behind its pull-up.
func (b *Bank) StopButton() InputPin {
	return InputPin{pin: b.stop}
}

// OutputPin adapts a periph.io gpio.PinIO to the boolean-level Out
// method internal/pwm's hot-path tick loop calls.
type OutputPin struct {
	pin gpio.PinIO
}

func (o OutputPin) Out(level bool) error {
	return o.pin.Out(gpio.Level(level))
}

// InputPin adapts a periph.io gpio.PinIO to the (bool, error) read
// internal/button's debouncer expects, inverting the pull-up's idle-high
// convention so Read reports true when the button is physically
// pressed.
type InputPin struct {
	pin gpio.PinIO
}

func (i InputPin) Read() (pressed bool, err error) {
	return i.pin.Read() == gpio.Low, nil
}
