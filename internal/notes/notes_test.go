package notes

import "testing"

func TestClampFreqBounds(t *testing.T) {
	if got := ClampFreq(10); got != 65 {
		t.Fatalf("ClampFreq(10) = %d, want 65", got)
	}
	if got := ClampFreq(9000); got != 4000 {
		t.Fatalf("ClampFreq(9000) = %d, want 4000", got)
	}
	if got := ClampFreq(440); got != 440 {
		t.Fatalf("ClampFreq(440) = %d, want 440", got)
	}
}

func TestShiftOctaveRestStaysRest(t *testing.T) {
	if got := ShiftOctave(0, 2); got != 0 {
		t.Fatalf("ShiftOctave(0, 2) = %d, want 0", got)
	}
}

func TestShiftOctaveUpAndDown(t *testing.T) {
	if got := ShiftOctave(440, 1); got != 880 {
		t.Fatalf("ShiftOctave(440, 1) = %d, want 880", got)
	}
	if got := ShiftOctave(440, -1); got != 220 {
		t.Fatalf("ShiftOctave(440, -1) = %d, want 220", got)
	}
}

func TestRoundedDivisionZeroDivisor(t *testing.T) {
	if got := RoundedDivision(0); got != 0 {
		t.Fatalf("RoundedDivision(0) = %d, want 0", got)
	}
}

func TestRoundedDivisionMatchesFormula(t *testing.T) {
	// 240000 bpm*denom product of 63*4=252 -> floor((240000+126)/252)
	got := RoundedDivision(252)
	want := uint32((240000 + 126) / 252)
	if got != want {
		t.Fatalf("RoundedDivision(252) = %d, want %d", got, want)
	}
}

func TestDottedAddsHalf(t *testing.T) {
	// 1000ms dotted -> 1500ms
	if got := Dotted(1000); got != 1500 {
		t.Fatalf("Dotted(1000) = %d, want 1500", got)
	}
}

func TestSaturatingAddMsClampsAtUint16Max(t *testing.T) {
	if got := SaturatingAddMs(60000, 10000); got != 65535 {
		t.Fatalf("SaturatingAddMs overflow = %d, want 65535", got)
	}
}

func TestLetterSemitoneCMajorScale(t *testing.T) {
	want := map[byte]uint8{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}
	for letter, semi := range want {
		if got := LetterSemitone(letter); got != semi {
			t.Fatalf("LetterSemitone(%q) = %d, want %d", letter, got, semi)
		}
	}
}

func TestNoteFreqOctaveScaling(t *testing.T) {
	base := NoteFreq(9, 4) // A4
	if base != 440 {
		t.Fatalf("NoteFreq(9,4) = %d, want 440", base)
	}
	if up := NoteFreq(9, 5); up != 880 {
		t.Fatalf("NoteFreq(9,5) = %d, want 880", up)
	}
	if down := NoteFreq(9, 3); down != 220 {
		t.Fatalf("NoteFreq(9,3) = %d, want 220", down)
	}
}
