// Package devstate owns the device's {IDLE, PLAYING} state machine.
// State changes broadcast a status frame to every connected WebSocket
// client; the fields backing a transition live behind one mutex rather
// than scattered atomics, the same shape the upstream storage layer
// used for its own multi-field invariants.
package devstate

import (
	"sync"
	"time"
)

// State is the device's coarse playback state.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Broadcaster is the device's fan-out to connected WebSocket clients.
type Broadcaster interface {
	Broadcast(msg string)
}

// Machine tracks the current state, which song (if any) is playing, and
// how long playback has been silent, so a stalled melody can settle back
// to Idle on its own.
type Machine struct {
	mu sync.Mutex

	state        State
	songName     string
	enteredAt    time.Time
	lastActiveAt time.Time
	settle       time.Duration

	bc Broadcaster
}

// New builds a Machine starting in Idle. settle is how long playback may
// sit silent (no player active) before the machine gives up and settles
// back to Idle on its own.
func New(bc Broadcaster, settle time.Duration) *Machine {
	return &Machine{bc: bc, settle: settle, state: Idle}
}

// EnterPlaying transitions to Playing for songName and broadcasts
// "playing:<songName>". Calling it again while already Playing — the
// re-entrant case, e.g. two play commands racing — still resets
// enteredAt/lastActiveAt and re-broadcasts, so no stale timer from the
// first entry can fire a spurious auto-stop later.
func (m *Machine) EnterPlaying(songName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.state = Playing
	m.songName = songName
	m.enteredAt = now
	m.lastActiveAt = now
	m.bc.Broadcast("playing:" + songName)
}

// EnterIdle transitions to Idle and broadcasts "stopped". A no-op if
// already Idle.
func (m *Machine) EnterIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enterIdleLocked()
}

func (m *Machine) enterIdleLocked() {
	if m.state == Idle {
		return
	}
	m.state = Idle
	m.songName = ""
	m.enteredAt = time.Now()
	m.bc.Broadcast("stopped")
}

// Tick is called on every melody scheduler tick with whether any player
// is currently active. While Playing with no active player, once the
// silence has lasted at least the configured settle duration, the
// machine settles itself back to Idle without anyone calling Stop.
func (m *Machine) Tick(anyPlayerActive bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Playing {
		return
	}
	if anyPlayerActive {
		m.lastActiveAt = now
		return
	}
	if now.Sub(m.lastActiveAt) >= m.settle {
		m.enterIdleLocked()
	}
}

// Snapshot reports the current state and song name.
func (m *Machine) Snapshot() (State, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.songName
}
