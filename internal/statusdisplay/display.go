//go:build !amd64
// +build !amd64

// Package statusdisplay drives an optional SSD1306 OLED that mirrors
// the device's current state: now-playing song name, volume, and
// mini-GPT generation status. A screen isn't required for the device to
// work; this wires an existing periph.io display driver onto the
// control plane instead of leaving it unused.
package statusdisplay

import (
	"context"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/devices/ssd1306"
	"periph.io/x/periph/devices/ssd1306/image1bit"
	"periph.io/x/periph/host"
)

var textFont = inconsolata.Bold8x16

// ScreenTimeout is how long the display stays lit with no state change
// before it blanks itself to prevent OLED burn-in.
var ScreenTimeout = 10 * time.Minute

type Screen struct {
	dev        *ssd1306.Dev
	img        *image1bit.VerticalLSB
	lastActive time.Time
}

// NewScreen opens the I2C bus and attaches an ssd1306. If no display is
// present this returns an error — callers should treat a missing screen
// as optional hardware, not a fatal startup condition.
func NewScreen() (*Screen, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("statusdisplay: host.Init: %w", err)
	}

	b, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("statusdisplay: open i2c bus: %w", err)
	}

	opts := ssd1306.DefaultOpts
	opts.Rotated = false
	dev, err := ssd1306.NewI2C(b, &opts)
	if err != nil {
		return nil, fmt.Errorf("statusdisplay: no ssd1306 found: %w", err)
	}

	return &Screen{
		dev:        dev,
		img:        image1bit.NewVerticalLSB(dev.Bounds()),
		lastActive: time.Now(),
	}, nil
}

// WriteLine draws text into one of four fixed text rows (0 = top, 3 =
// bottom) and pushes the frame to the display.
func (s *Screen) WriteLine(lineNum int, text string) error {
	s.MarkActivity()
	height := s.img.Bounds().Dy() - textFont.Descent
	// "invert" the linenumber: 0-th line should be the top, 3rd line
	// should be at the bottom, by default that's inverted
	height -= (3 - lineNum) * textFont.Height
	drawer := font.Drawer{
		Dst:  s.img,
		Src:  &image.Uniform{image1bit.On},
		Face: textFont,
		Dot:  fixed.P(0, height),
	}

	drawer.DrawString(text)
	return s.Draw()
}

func (s *Screen) Draw() error {
	return s.dev.Draw(s.dev.Bounds(), s.img, image.Point{})
}

func (s *Screen) Blank() error {
	s.MarkActivity()
	s.img = image1bit.NewVerticalLSB(s.dev.Bounds())
	return s.dev.Draw(s.dev.Bounds(), s.img, image.Point{})
}

func (s *Screen) MarkActivity() {
	s.lastActive = time.Now()
}

func (s *Screen) shouldBlank() bool {
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
