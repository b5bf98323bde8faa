// Package wifiwatch is a reconnect-only watchdog: it polls nmcli for
// link state on a fixed interval and re-ups the configured connection if
// it has dropped. There is no interactive SSID/password provisioning
// flow here — this daemon has no keyboard, so a dropped link is always
// recovered by reconnecting to whatever connection profile nmcli already
// has, never by prompting for new credentials.
package wifiwatch

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/juju/loggo"

	"code.musicbuzzer.dev/buzzer/internal/apperr"
)

var logger = loggo.GetLogger("main.wifiwatch")

// Watch polls connectivity every interval until ctx is cancelled,
// calling `nmcli con up connName` whenever the link is down.
func Watch(ctx context.Context, interval time.Duration, connName string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := checkAndReconnect(ctx, connName); err != nil {
				logger.Warningf("%v", apperr.Newf(apperr.NetworkTransient, "wifi reconnect failed: %v", err))
			}
		}
	}
}

func checkAndReconnect(ctx context.Context, connName string) error {
	if connected(ctx) {
		return nil
	}

	logger.Warningf("wifi link down, attempting reconnect to %q", connName)
	cmd := exec.CommandContext(ctx, "nmcli", "con", "up", connName)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &execError{cmd: "nmcli con up " + connName, out: out, err: err}
	}
	logger.Infof("reconnected to %q: %s", connName, out)
	return nil
}

func connected(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "nmcli", "-t", "-c", "no", "--fields", "STATE", "general", "status")
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(bytes.TrimSpace(out)), "connected")
}

type execError struct {
	cmd string
	out []byte
	err error
}

func (e *execError) Error() string {
	return e.cmd + ": " + e.err.Error() + ": " + string(e.out)
}
