//go:build amd64
// +build amd64

// This build mirrors internal/statusdisplay's real ssd1306 driver with
// an in-memory line buffer, for development machines with no attached
// display. It has the display.go methods that cmd/buzzerd and
// internal/device call, so they need no build-tag-specific code of their
// own; MarkActivity exists only in display.go and Lines only here.
package statusdisplay

import (
	"context"
	"sync"
	"time"
)

// ScreenTimeout is how long the display stays lit with no state change
// before it blanks itself; longer here since there's no physical panel
// at risk of burn-in on a dev machine.
var ScreenTimeout = time.Hour

const lineCount = 4

type Screen struct {
	mu         sync.Mutex
	lines      [lineCount]string
	blanked    bool
	lastActive time.Time
}

func NewScreen() (*Screen, error) {
	return &Screen{lastActive: time.Now()}, nil
}

// WriteLine records text into one of four fixed text rows (0 = top, 3 =
// bottom).
func (s *Screen) WriteLine(lineNum int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lineNum < 0 || lineNum >= lineCount {
		return nil
	}
	s.lines[lineNum] = text
	s.blanked = false
	s.lastActive = time.Now()
	return nil
}

// Draw is a no-op on this build; WriteLine already committed the text
// to the in-memory buffer Lines() exposes for tests/debugging.
func (s *Screen) Draw() error { return nil }

func (s *Screen) Blank() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blanked = true
	s.lastActive = time.Now()
	return nil
}

// Lines returns a snapshot of the four text rows, blank if the screen
// is currently blanked.
func (s *Screen) Lines() [lineCount]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blanked {
		return [lineCount]string{}
	}
	return s.lines
}

func (s *Screen) shouldBlank() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().After(s.lastActive.Add(ScreenTimeout))
}

// HandleScreenSaver blanks the screen once it has gone ScreenTimeout
// without activity, until ctx is cancelled.
func (s *Screen) HandleScreenSaver(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.shouldBlank() {
				_ = s.Blank()
			}
		}
	}
}
