// Command buzzerd is the network-attached buzzer daemon: it drives the
// PWM engine, the melody scheduler, the song catalog, the {IDLE,PLAYING}
// state machine, and the mini-GPT generation worker behind a WebSocket
// control plane, serving a PWA shell over the same HTTP port.
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/juju/loggo"

	"code.musicbuzzer.dev/buzzer/internal/config"
	"code.musicbuzzer.dev/buzzer/internal/device"
	"code.musicbuzzer.dev/buzzer/internal/gpiobank"
	"code.musicbuzzer.dev/buzzer/internal/gpt"
	"code.musicbuzzer.dev/buzzer/internal/health"
	"code.musicbuzzer.dev/buzzer/internal/statusdisplay"
	"code.musicbuzzer.dev/buzzer/internal/telegram"
	"code.musicbuzzer.dev/buzzer/internal/wifiwatch"
)

var logger = loggo.GetLogger("main")

type app struct {
	ctx  context.Context
	exit context.CancelFunc
	cfg  *config.Config

	bot    *telegram.Bot
	bank   *gpiobank.Bank
	model  *gpt.Model
	screen *statusdisplay.Screen
	health *health.Checker

	dev *device.Device
}

func main() {
	cfg := config.Get()
	ctx, exit := context.WithCancel(context.Background())
	a := &app{ctx: ctx, exit: exit, cfg: cfg}

	// logging sends messages to telegram, so it depends on it
	a.setupTelegram()
	a.setupLogging()
	a.handleSignals()

	a.setupHealth()
	a.setupHardware()
	a.setupScreen()

	a.dev = device.New(a.cfg, a.bank, a.model, a.health, a.screen)
	if err := a.dev.LoadCatalog(a.cfg.CatalogDir); err != nil {
		logger.Criticalf("catalog load failed: %v", err)
		os.Exit(1)
	}

	go a.dev.Engine().Run(a.ctx)
	go a.dev.Run(a.ctx)
	go wifiwatch.Watch(a.ctx, time.Duration(a.cfg.WifiCheckMs)*time.Millisecond, a.cfg.WifiConn)

	if a.health != nil {
		go a.health.Heartbeat(a.ctx, 30*time.Minute)
	}
	if a.screen != nil {
		go a.screen.HandleScreenSaver(a.ctx)
	}

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(a.cfg.Port),
		Handler: a.routes(),
	}
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Criticalf("http server failed: %v", err)
			a.exit()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	time.Sleep(250 * time.Millisecond)
	os.Exit(0)
}
