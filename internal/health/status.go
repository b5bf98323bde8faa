// Package health watches the device's own free memory, the resource the
// Allocation/LowMemory error kinds actually guard against: the
// generation worker refuses to start a run if free memory is under
// budget, and a periodic heartbeat lets the operator channel notice a
// device that stopped checking in at all.
package health

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juju/loggo"

	"code.musicbuzzer.dev/buzzer/internal/telegram"
)

var logger = loggo.GetLogger("main.health")

// Checker reports on free memory and phones home on a heartbeat.
type Checker struct {
	bot *telegram.Bot
}

func New(bot *telegram.Bot) *Checker {
	return &Checker{bot: bot}
}

// FreeMemoryKB reads MemAvailable from /proc/meminfo. It returns an
// error if the file can't be read or parsed, never a zero value
// standing in for "unknown" — callers must not treat failure-to-read as
// "plenty of memory".
func (c *Checker) FreeMemoryKB() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, err
		}
		return kb, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("MemAvailable not found in /proc/meminfo")
}

// HasHeadroom reports whether free memory is at or above minKB.
// Read failures are treated as "no headroom" — better to refuse a
// generation run than start one when memory pressure can't even be
// measured.
func (c *Checker) HasHeadroom(minKB uint64) bool {
	free, err := c.FreeMemoryKB()
	if err != nil {
		logger.Warningf("failed reading free memory: %v", err)
		return false
	}
	return free >= minKB
}

// Heartbeat runs until ctx is cancelled, sending a silent status ping
// to the operator channel every interval.
func (c *Checker) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.bot == nil {
				continue
			}
			free, err := c.FreeMemoryKB()
			if err != nil {
				continue
			}
			_ = c.bot.Send("heartbeat: free memory "+strconv.FormatUint(free, 10)+" kB", true)
		}
	}
}
