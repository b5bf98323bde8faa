// Package melody implements the per-buzzer note scheduler and the
// track-to-buzzer assignment rules. A Player walks one track's notes,
// turning each into a tone window followed by a silence gap; a
// Scheduler drives a whole song's players together and restarts them in
// lockstep once every voice has looped back to its start.
package melody

import "code.musicbuzzer.dev/buzzer/internal/notes"

// BuzzerDriver is the PWM engine's view from the scheduler's side: set a
// tone going, or silence the buzzer. Implementations must be safe to call
// from whatever goroutine drives Scheduler.Update.
type BuzzerDriver interface {
	SetTone(buzzerIndex int, freqHz uint16)
	Stop(buzzerIndex int)
}

type playerState int

const (
	stateIdle playerState = iota
	stateTone
	stateGap
	stateLoopPause
)

// minGapMs is the floor under which a note plays gapless into the next
// one; below it the inter-note silence would be inaudible anyway.
const minGapMs = 20

// Player walks a single track on a single buzzer, applying a fixed
// octave shift to every note it plays.
type Player struct {
	driver      BuzzerDriver
	buzzerIndex int
	shift       int8

	track     notes.Track
	idx       int
	state     playerState
	remaining int32
	gap       uint16
	paused    uint32
}

// NewPlayer creates a player bound to one buzzer through driver. It
// starts idle; call Load to hand it a track.
func NewPlayer(driver BuzzerDriver, buzzerIndex int, shift int8) *Player {
	return &Player{driver: driver, buzzerIndex: buzzerIndex, shift: shift, state: stateIdle}
}

// Load replaces the player's track and begins playing it from the
// first note.
func (p *Player) Load(track notes.Track) {
	p.track = track
	p.idx = 0
	if len(track) == 0 {
		p.state = stateIdle
		p.driver.Stop(p.buzzerIndex)
		return
	}
	p.startNote()
}

// Stop silences the buzzer and idles the player.
func (p *Player) Stop() {
	p.state = stateIdle
	p.track = nil
	p.driver.Stop(p.buzzerIndex)
}

// Active reports whether the player has a track loaded (including while
// paused between loop iterations).
func (p *Player) Active() bool { return p.state != stateIdle }

// InLoopPause reports whether the player has reached the end of its
// track and is waiting to restart.
func (p *Player) InLoopPause() bool { return p.state == stateLoopPause }

// PauseElapsedMs reports how long the player has been waiting in its
// loop pause; meaningless unless InLoopPause is true.
func (p *Player) PauseElapsedMs() uint32 { return p.paused }

// Restart resumes playback from the first note, used by the scheduler
// once every voice in a song has reached its loop pause together.
func (p *Player) Restart() {
	if len(p.track) == 0 {
		return
	}
	p.idx = 0
	p.startNote()
}

func (p *Player) startNote() {
	note := p.track[p.idx]
	gap := computeGap(note.DurationMs)
	toneMs := note.DurationMs - gap

	freq := notes.ShiftOctave(note.FreqHz, p.shift)
	if freq == 0 {
		p.driver.Stop(p.buzzerIndex)
	} else {
		p.driver.SetTone(p.buzzerIndex, freq)
	}

	p.state = stateTone
	p.remaining = int32(toneMs)
	p.gap = gap
}

// Update advances the player's internal clock by dtMs, transitioning
// between tone, gap, and loop-pause states as needed.
func (p *Player) Update(dtMs uint32) {
	switch p.state {
	case stateTone:
		p.remaining -= int32(dtMs)
		if p.remaining <= 0 {
			p.driver.Stop(p.buzzerIndex)
			if p.gap > 0 {
				p.state = stateGap
				p.remaining = int32(p.gap)
			} else {
				p.advance()
			}
		}
	case stateGap:
		p.remaining -= int32(dtMs)
		if p.remaining <= 0 {
			p.advance()
		}
	case stateLoopPause:
		p.paused += dtMs
	case stateIdle:
	}
}

func (p *Player) advance() {
	p.idx++
	if p.idx >= len(p.track) {
		p.idx = 0
		p.state = stateLoopPause
		p.paused = 0
		return
	}
	p.startNote()
}

// computeGap derives the silence window following a note of the given
// duration: a tenth of the note, floored at minGapMs, but never longer
// than the note itself, and zero outright for very short notes.
func computeGap(durationMs uint16) uint16 {
	if durationMs < minGapMs {
		return 0
	}
	g := durationMs / 10
	if g < minGapMs {
		g = minGapMs
	}
	if g >= durationMs {
		return 0
	}
	return g
}

// Scheduler drives every player in a song together, restarting them in
// lockstep once all active voices have looped back to their start —
// matching the original firmware's synchronized-restart behavior rather
// than letting independently-looping tracks drift apart.
type Scheduler struct {
	players     []*Player
	loopPauseMs uint32
}

// NewScheduler builds a scheduler over players, configured to restart a
// fully-paused song after loopPauseMs of silence.
func NewScheduler(players []*Player, loopPauseMs uint32) *Scheduler {
	return &Scheduler{players: players, loopPauseMs: loopPauseMs}
}

// VoiceCount reports how many players the scheduler is driving.
func (s *Scheduler) VoiceCount() int { return len(s.players) }

// Update advances every active player by dtMs, then restarts the whole
// group if every active voice is paused and the longest pause has
// crossed the configured threshold.
func (s *Scheduler) Update(dtMs uint32) {
	any := false
	for _, p := range s.players {
		if p.Active() {
			any = true
			p.Update(dtMs)
		}
	}
	if !any {
		return
	}

	latest, allPaused := s.latestPause()
	if allPaused && latest >= s.loopPauseMs {
		for _, p := range s.players {
			if p.InLoopPause() {
				p.Restart()
			}
		}
	}
}

func (s *Scheduler) latestPause() (uint32, bool) {
	var latest uint32
	seen := false
	for _, p := range s.players {
		if !p.Active() {
			continue
		}
		if !p.InLoopPause() {
			return 0, false
		}
		seen = true
		if p.PauseElapsedMs() > latest {
			latest = p.PauseElapsedMs()
		}
	}
	return latest, seen
}

// Stop silences and idles every player in the group.
func (s *Scheduler) Stop() {
	for _, p := range s.players {
		p.Stop()
	}
}

// Active reports whether any player in the group still has a track
// loaded.
func (s *Scheduler) Active() bool {
	for _, p := range s.players {
		if p.Active() {
			return true
		}
	}
	return false
}
