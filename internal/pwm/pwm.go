// Package pwm is the "audio ISR": a fixed-point phase accumulator per
// buzzer, sampled on a fixed tick and compared against a duty threshold
// to decide whether that buzzer's pin is high or low.
//
// The original firmware drives this from a hardware timer interrupt that
// preempts everything else on the core; Go has no equivalent, so this is
// a dedicated goroutine pinned to a time.Ticker instead. The fields each
// buzzer's tick touches are atomics specifically so the control-plane
// goroutines (melody scheduler, WebSocket handler) can update frequency,
// duty, and volume without a lock on the hot path — there is no
// compiler-enforced guarantee this goroutine never blocks or allocates,
// only the discipline of keeping its body free of both.
package pwm

import (
	"context"
	"sync/atomic"
	"time"
)

// OutputPin is the sliver of a GPIO pin the engine needs: drive it high
// or low. internal/gpiobank's periph.io-backed pins satisfy this.
type OutputPin interface {
	Out(level bool) error
}

// dutyBits is the width of the duty comparison window: pos, the top
// dutyBits of the 32-bit phase accumulator, ranges over [0, 1<<dutyBits).
const dutyBits = 9
const dutyFull = 1 << dutyBits

type voice struct {
	pin   OutputPin
	phase uint32

	phaseIncrement atomic.Uint32
	dutyOn         atomic.Uint32
}

// Engine drives numBuzzers independent square waves at a shared sample
// rate, each with its own frequency and volume-scaled duty cycle.
type Engine struct {
	sampleRateHz uint32
	voices       []*voice
	volume       atomic.Uint32 // percent, 0-100
}

// New builds an engine over pins, one voice per pin, sampling at
// sampleRateHz. Volume starts at defaultVolume percent.
func New(pins []OutputPin, sampleRateHz uint32, defaultVolume uint8) *Engine {
	e := &Engine{sampleRateHz: sampleRateHz, voices: make([]*voice, len(pins))}
	for i, pin := range pins {
		e.voices[i] = &voice{pin: pin}
	}
	e.volume.Store(uint32(defaultVolume))
	return e
}

// SetTone starts buzzerIndex oscillating at freqHz. freqHz == 0 silences
// it, same as Stop.
func (e *Engine) SetTone(buzzerIndex int, freqHz uint16) {
	if buzzerIndex < 0 || buzzerIndex >= len(e.voices) {
		return
	}
	v := e.voices[buzzerIndex]
	if freqHz == 0 {
		v.phaseIncrement.Store(0)
		v.dutyOn.Store(0)
		return
	}
	v.phaseIncrement.Store(freqToIncrement(freqHz, e.sampleRateHz))
	v.dutyOn.Store(e.dutyFor(50))
}

// Stop silences buzzerIndex.
func (e *Engine) Stop(buzzerIndex int) {
	if buzzerIndex < 0 || buzzerIndex >= len(e.voices) {
		return
	}
	e.voices[buzzerIndex].phaseIncrement.Store(0)
	e.voices[buzzerIndex].dutyOn.Store(0)
}

// SetVolume sets the global volume percent (0-100), applied to every
// voice's duty the next time it starts a tone. Volume changes do not
// retroactively alter a tone already sounding; the melody scheduler
// calls SetTone again on every note boundary anyway.
func (e *Engine) SetVolume(percent uint8) {
	if percent > 100 {
		percent = 100
	}
	e.volume.Store(uint32(percent))
}

// Volume reports the current global volume percent (0-100).
func (e *Engine) Volume() uint8 {
	return uint8(e.volume.Load())
}

func (e *Engine) dutyFor(basePercent uint32) uint32 {
	vol := e.volume.Load()
	return (dutyFull / 2) * basePercent / 100 * vol / 100
}

// CurrentFreqHz reports buzzerIndex's currently sounding frequency, or 0
// if it is silent or out of range. It is the inverse of freqToIncrement,
// rounded down, and exists mainly so status reporting and tests can
// observe the engine's state without reaching into its atomics.
func (e *Engine) CurrentFreqHz(buzzerIndex int) uint16 {
	if buzzerIndex < 0 || buzzerIndex >= len(e.voices) {
		return 0
	}
	inc := e.voices[buzzerIndex].phaseIncrement.Load()
	if inc == 0 {
		return 0
	}
	return uint16((uint64(inc) * uint64(e.sampleRateHz)) >> 32)
}

// freqToIncrement computes the per-sample phase step for freqHz at the
// given sample rate: increment/2^32 cycles per sample, so freqHz cycles
// per second.
func freqToIncrement(freqHz uint16, sampleRateHz uint32) uint32 {
	return uint32((uint64(freqHz) << 32) / uint64(sampleRateHz))
}

// Run ticks the engine at its sample rate until ctx is cancelled. It is
// meant to run on its own goroutine for the process lifetime.
func (e *Engine) Run(ctx context.Context) {
	period := time.Second / time.Duration(e.sampleRateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, v := range e.voices {
				_ = v.pin.Out(false)
			}
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	for _, v := range e.voices {
		inc := v.phaseIncrement.Load()
		v.phase += inc
		if inc == 0 {
			_ = v.pin.Out(false)
			continue
		}
		pos := v.phase >> (32 - dutyBits)
		on := pos < v.dutyOn.Load()
		_ = v.pin.Out(on)
	}
}
