// Package notes defines the uniform (frequency, duration) representation
// that both song notations parse into, and the track/song containers built
// on top of it.
package notes

// Note is a single tone or rest. FreqHz == 0 denotes a rest.
type Note struct {
	FreqHz      uint16
	DurationMs  uint16
}

// Track is an ordered, finite sequence of notes. A Track is owned
// exclusively by the SongEntry that parsed it.
type Track []Note

// TotalDurationMs sums the duration of every note in the track as a
// uint64, so the sum is not bounded by the per-note uint16 ceiling.
func (t Track) TotalDurationMs() uint64 {
	var total uint64
	for _, n := range t {
		total += uint64(n.DurationMs)
	}
	return total
}

// ClampFreq clamps a frequency to the audible band the PWM engine can
// reliably drive: [65, 4000] Hz.
func ClampFreq(f int32) uint16 {
	const lo, hi = 65, 4000
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return uint16(f)
}

// ShiftOctave applies an octave shift to a frequency (freq <<= shift for
// positive shift, freq >>= -shift for negative), then clamps the result.
// Shift is applied before clamping, matching the original firmware's
// integer-doubling approach.
func ShiftOctave(freqHz uint16, shift int8) uint16 {
	if freqHz == 0 {
		return 0
	}
	f := int32(freqHz)
	if shift > 0 {
		f <<= uint(shift)
	} else if shift < 0 {
		f >>= uint(-shift)
	}
	return ClampFreq(f)
}

// SaturatingAddMs adds b to a, saturating at 65535 rather than wrapping.
func SaturatingAddMs(a, b uint32) uint16 {
	sum := a + b
	if sum > 65535 {
		return 65535
	}
	return uint16(sum)
}

// RoundedDivision computes floor((240000 + divisor/2) / divisor), the
// shared millisecond formula used by both the RTTTL and MML parsers:
// ms = round(240000 / divisor) where divisor = bpm (or tempo) * denominator.
// Returns 0 if divisor is 0 to let callers fall back to a sane default
// instead of dividing by zero.
func RoundedDivision(divisor uint32) uint32 {
	if divisor == 0 {
		return 0
	}
	return (240000 + divisor/2) / divisor
}

// Dotted multiplies a duration by 3/2, using the same rounded-division
// convention: floor((ms*3 + 1) / 2).
func Dotted(ms uint32) uint32 {
	return (ms*3 + 1) / 2
}

// semitoneFreqs holds C4..B4 in Hz, the octave-4 reference row both
// notations scale up or down from.
var semitoneFreqs = [12]uint16{262, 277, 294, 311, 330, 349, 370, 392, 415, 440, 466, 494}

// LetterSemitone maps a lowercase note letter (a-g) to its semitone offset
// within an octave, c==0.
func LetterSemitone(c byte) uint8 {
	switch c {
	case 'c':
		return 0
	case 'd':
		return 2
	case 'e':
		return 4
	case 'f':
		return 5
	case 'g':
		return 7
	case 'a':
		return 9
	case 'b':
		return 11
	default:
		return 0
	}
}

// NoteFreq computes the frequency in Hz for a semitone (taken mod 12, so
// sharps that roll past 'b' wrap correctly) at the given octave, relative
// to the octave-4 reference row.
func NoteFreq(semitone uint8, octave uint8) uint16 {
	f := semitoneFreqs[semitone%12]
	if octave > 4 {
		f <<= uint(octave - 4)
	} else if octave < 4 {
		f >>= uint(4 - octave)
	}
	return f
}
