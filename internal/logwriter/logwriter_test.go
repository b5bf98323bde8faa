package logwriter

import (
	"strings"
	"testing"
	"time"

	"github.com/juju/loggo"
)

func TestFormatEntryEncodesLevelAsLetterPlusNumber(t *testing.T) {
	w := &writer{}
	e := loggo.Entry{
		Level:     loggo.WARNING,
		Module:    "main.device",
		Filename:  "/home/x/buzzer/internal/device/device.go",
		Line:      42,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Message:   "stop button pressed",
	}

	got := w.formatEntry(e)

	want := "W" + string(rune('0'+int(loggo.WARNING)))
	if !strings.HasPrefix(got, "["+want) {
		t.Fatalf("formatEntry() = %q, want prefix [%s", got, want)
	}
	if !strings.Contains(got, "main.device") {
		t.Fatalf("formatEntry() = %q, want module name present", got)
	}
	if !strings.Contains(got, "device.go:42") {
		t.Fatalf("formatEntry() = %q, want file:line present", got)
	}
	if !strings.Contains(got, "stop button pressed") {
		t.Fatalf("formatEntry() = %q, want message present", got)
	}
}

func TestFormatEntryUsesBaseFilenameNotFullPath(t *testing.T) {
	w := &writer{}
	e := loggo.Entry{
		Level:    loggo.INFO,
		Module:   "main.catalog",
		Filename: "/some/long/path/catalog.go",
		Line:     7,
		Message:  "loaded 3 songs",
	}

	got := w.formatEntry(e)

	if strings.Contains(got, "/some/long/path") {
		t.Fatalf("formatEntry() = %q, want full directory stripped", got)
	}
	if !strings.Contains(got, "catalog.go:7") {
		t.Fatalf("formatEntry() = %q, want catalog.go:7", got)
	}
}
