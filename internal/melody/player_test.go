package melody

import (
	"testing"

	"code.musicbuzzer.dev/buzzer/internal/notes"
)

type fakeDriver struct {
	tones map[int]uint16
	stops map[int]int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{tones: make(map[int]uint16), stops: make(map[int]int)}
}

func (f *fakeDriver) SetTone(buzzerIndex int, freqHz uint16) {
	f.tones[buzzerIndex] = freqHz
}

func (f *fakeDriver) Stop(buzzerIndex int) {
	f.stops[buzzerIndex]++
	delete(f.tones, buzzerIndex)
}

func TestPlayerLoadEmptyTrackStaysIdle(t *testing.T) {
	drv := newFakeDriver()
	p := NewPlayer(drv, 0, 0)
	p.Load(nil)
	if p.Active() {
		t.Fatalf("player with empty track should not be active")
	}
	if drv.stops[0] != 1 {
		t.Fatalf("expected Stop to silence the buzzer on empty load")
	}
}

func TestPlayerAdvancesThroughToneGapAndLoopPause(t *testing.T) {
	drv := newFakeDriver()
	p := NewPlayer(drv, 0, 0)
	track := notes.Track{{FreqHz: 440, DurationMs: 100}}
	p.Load(track)

	if !p.Active() {
		t.Fatalf("player should be active right after Load")
	}
	if drv.tones[0] != 440 {
		t.Fatalf("expected tone 440 set, got %d", drv.tones[0])
	}

	// tone window is duration minus gap (computeGap(100) = 20)
	p.Update(80)
	if p.state != stateGap {
		t.Fatalf("expected state gap after tone window elapses, got %v", p.state)
	}

	p.Update(20)
	if !p.InLoopPause() {
		t.Fatalf("expected loop pause after the single note completes")
	}
}

func TestPlayerRestartReplaysFromStart(t *testing.T) {
	drv := newFakeDriver()
	p := NewPlayer(drv, 0, 0)
	track := notes.Track{{FreqHz: 440, DurationMs: 100}}
	p.Load(track)
	p.Update(80) // tone -> gap
	p.Update(20) // gap -> loop pause
	if !p.InLoopPause() {
		t.Fatalf("expected loop pause")
	}

	p.Restart()
	if p.state != stateTone {
		t.Fatalf("expected restart to resume tone playback, got %v", p.state)
	}
}

func TestSchedulerRestartsOnlyAfterAllVoicesPauseBeyondThreshold(t *testing.T) {
	drv := newFakeDriver()
	a := NewPlayer(drv, 0, 0)
	b := NewPlayer(drv, 1, 0)
	// duration 40 with computeGap(40) == 20 gives a clean 20/20 split
	// between tone and gap, so dt=20 lands exactly on each transition.
	a.Load(notes.Track{{FreqHz: 440, DurationMs: 40}})
	b.Load(notes.Track{{FreqHz: 440, DurationMs: 40}})

	s := NewScheduler([]*Player{a, b}, 30)

	s.Update(20) // tone -> gap
	if a.state != stateGap || b.state != stateGap {
		t.Fatalf("expected both voices in gap state, got %v / %v", a.state, b.state)
	}

	s.Update(20) // gap -> loop pause, paused == 0
	if !a.InLoopPause() || !b.InLoopPause() {
		t.Fatalf("expected both voices in loop pause")
	}

	s.Update(20) // paused == 20, still under the 30ms threshold
	if a.state == stateTone {
		t.Fatalf("should not restart before the pause threshold is crossed")
	}

	s.Update(20) // paused == 40, past the 30ms threshold
	if a.state != stateTone || b.state != stateTone {
		t.Fatalf("expected both voices to restart once the pause threshold passed")
	}
}

func TestSchedulerWithholdsRestartUntilEveryActiveVoiceIsPaused(t *testing.T) {
	drv := newFakeDriver()
	short := NewPlayer(drv, 0, 0)
	long := NewPlayer(drv, 1, 0)
	short.Load(notes.Track{{FreqHz: 440, DurationMs: 40}})
	long.Load(notes.Track{{FreqHz: 440, DurationMs: 200}})

	s := NewScheduler([]*Player{short, long}, 0)

	s.Update(20) // short: tone -> gap
	s.Update(20) // short: gap -> loop pause; long still sounding
	if !short.InLoopPause() {
		t.Fatalf("expected short voice to be paused")
	}
	if long.InLoopPause() {
		t.Fatalf("long voice should still be sounding")
	}
	if short.state == stateTone {
		t.Fatalf("short voice must not restart alone while long voice is still active")
	}
}

func TestComputeGapSuppressesGapAtExactThreshold(t *testing.T) {
	// durationMs == minGapMs floors to a gap equal to the whole note;
	// computeGap must drop the gap entirely rather than silence it.
	if g := computeGap(20); g != 0 {
		t.Fatalf("computeGap(20) = %d, want 0 (note should stay fully toned)", g)
	}
}

func TestPlayerWithTwentyMsNoteStaysTonedThroughout(t *testing.T) {
	drv := newFakeDriver()
	p := NewPlayer(drv, 0, 0)
	p.Load(notes.Track{{FreqHz: 440, DurationMs: 20}})

	p.Update(19)
	if p.state != stateTone {
		t.Fatalf("expected state tone to persist for the whole 20ms note, got %v", p.state)
	}
}

func TestSchedulerStopSilencesAllPlayers(t *testing.T) {
	drv := newFakeDriver()
	p1 := NewPlayer(drv, 0, 0)
	p2 := NewPlayer(drv, 1, 0)
	p1.Load(notes.Track{{FreqHz: 440, DurationMs: 100}})
	p2.Load(notes.Track{{FreqHz: 440, DurationMs: 100}})

	s := NewScheduler([]*Player{p1, p2}, 40)
	s.Stop()

	if s.Active() {
		t.Fatalf("scheduler should report inactive after Stop")
	}
}
