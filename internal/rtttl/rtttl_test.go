package rtttl

import "testing"

func TestParseSimpleSong(t *testing.T) {
	track := Parse("Test:d=4,o=5,b=100:c,8d,p,4e", 256)
	if len(track) != 4 {
		t.Fatalf("got %d notes, want 4", len(track))
	}
	if track[1].DurationMs >= track[0].DurationMs {
		t.Fatalf("eighth note duration should be shorter than quarter: %v vs %v", track[1], track[0])
	}
}

func TestParseRestHasZeroFreq(t *testing.T) {
	track := Parse("Test:d=4,o=5,b=100:p", 256)
	if len(track) != 1 {
		t.Fatalf("got %d notes, want 1", len(track))
	}
	if track[0].FreqHz != 0 {
		t.Fatalf("rest should have FreqHz 0, got %d", track[0].FreqHz)
	}
}

func TestParseMissingColonReturnsNil(t *testing.T) {
	if track := Parse("nocolonhere", 256); track != nil {
		t.Fatalf("expected nil track for malformed input, got %v", track)
	}
}

func TestParseRespectsMaxNotes(t *testing.T) {
	track := Parse("Test:d=4,o=5,b=100:c,c,c,c,c", 2)
	if len(track) != 2 {
		t.Fatalf("got %d notes, want 2 (bounded by maxNotes)", len(track))
	}
}

func TestParseSharpRaisesSemitone(t *testing.T) {
	track := Parse("Test:d=4,o=5,b=100:c,c#", 256)
	if len(track) != 2 {
		t.Fatalf("got %d notes, want 2", len(track))
	}
	if track[1].FreqHz <= track[0].FreqHz {
		t.Fatalf("c# should be higher than c: %d vs %d", track[1].FreqHz, track[0].FreqHz)
	}
}

func TestParseDottedNoteLengthensDuration(t *testing.T) {
	plain := Parse("Test:d=4,o=5,b=100:c4", 256)
	dotted := Parse("Test:d=4,o=5,b=100:c4.", 256)
	if dotted[0].DurationMs <= plain[0].DurationMs {
		t.Fatalf("dotted note should be longer: %d vs %d", dotted[0].DurationMs, plain[0].DurationMs)
	}
}

func TestParseZeroBPMFallsBackToDefault(t *testing.T) {
	withBPM := Parse("Test:d=4,o=5,b=63:c", 256)
	zeroBPM := Parse("Test:d=4,o=5,b=0:c", 256)
	if len(withBPM) != 1 || len(zeroBPM) != 1 {
		t.Fatalf("expected one note each")
	}
	if withBPM[0].DurationMs != zeroBPM[0].DurationMs {
		t.Fatalf("b=0 should fall back to default bpm 63: %d vs %d", zeroBPM[0].DurationMs, withBPM[0].DurationMs)
	}
}
