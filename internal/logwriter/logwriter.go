// Package logwriter is the loggo backend: every log entry is formatted,
// appended to a file under the configured state directory, and anything
// WARNING or above is also mirrored to Telegram so the device's operator
// doesn't have to be watching a terminal when something goes wrong.
package logwriter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.musicbuzzer.dev/buzzer/internal/config"
	"code.musicbuzzer.dev/buzzer/internal/file"
	"code.musicbuzzer.dev/buzzer/internal/telegram"
	"github.com/juju/loggo"
)

type writer struct {
	bot *telegram.Bot
}

var logPath string

func Setup(bot *telegram.Bot, cfg *config.Config) error {
	if path, err := os.Executable(); err != nil {
		panic("os.Executable() failed! " + err.Error())
	} else {
		logPath = filepath.Join(
			cfg.StatePath,
			filepath.Base(path)+".log",
		)
	}

	_, err := loggo.RemoveWriter("default")
	if err != nil {
		return err
	}

	defaultWriter := &writer{
		bot: bot,
	}
	err = loggo.RegisterWriter("default", defaultWriter)
	if err != nil {
		return err
	}

	return nil
}

func (w *writer) Write(e loggo.Entry) {
	line := w.formatEntry(e)

	fp := e.Filename
	ix := strings.Index(e.Filename, "buzzer/")
	if ix != -1 {
		fp = fp[ix+len("buzzer/"):]
	}

	l := fmt.Sprintf("%v%v:%v %v\n",
		e.Timestamp.Format("[2006-01-02 15:04:05] "),
		fp, e.Line,
		line,
	)
	if err := file.Append(logPath, []byte(l)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log file: %v\n", err)
	}

	go func() {
		if w.bot != nil && e.Level >= loggo.WARNING {
			err := w.bot.Send(line, false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v bot send error: %v\n", e.Timestamp.Format("[2006-01-02 15:04:05]"), err)
			}
		}
	}()
}

func (w *writer) formatEntry(e loggo.Entry) string {
	// who can remember the order of the levels right?
	// indicate the level like T1 for TRACE D2 for debug, etc
	return fmt.Sprintf(
		"[%v%v|%v:%v:%v] %v",
		string(e.Level.String()[0]),
		int(e.Level),
		e.Module,
		filepath.Base(e.Filename),
		e.Line,
		e.Message,
	)
}
