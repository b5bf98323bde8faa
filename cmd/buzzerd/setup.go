package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"code.musicbuzzer.dev/buzzer/internal/gpiobank"
	"code.musicbuzzer.dev/buzzer/internal/gpt"
	"code.musicbuzzer.dev/buzzer/internal/health"
	"code.musicbuzzer.dev/buzzer/internal/logwriter"
	"code.musicbuzzer.dev/buzzer/internal/statusdisplay"
	"code.musicbuzzer.dev/buzzer/internal/telegram"
)

func (a *app) handleSignals() {
	if a.ctx.Err() != nil {
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		s := <-c
		logger.Warningf("got signal: %s, exiting cleanly", s)
		a.exit()
	}()
}

func (a *app) setupTelegram() {
	if a.ctx.Err() != nil {
		return
	}
	if a.cfg.TelegramToken == "" {
		return
	}

	bot, err := telegram.New(a.ctx, a.cfg.TelegramToken, a.cfg.TelegramChannelID)
	if err != nil {
		logger.Warningf("telegram setup failed, continuing without it: %v", err)
		return
	}
	a.bot = bot
	_ = a.bot.Send("buzzerd start @ "+time.Now().Format(time.RFC3339), true)
}

func (a *app) setupLogging() {
	if a.ctx.Err() != nil {
		return
	}

	if err := logwriter.Setup(a.bot, a.cfg); err != nil {
		panic("logwriter setup failed, impossible: " + err.Error())
	}
}

func (a *app) setupHealth() {
	if a.ctx.Err() != nil {
		return
	}
	a.health = health.New(a.bot)
}

// setupHardware brings up the GPIO bank and loads the generation model
// concurrently as two independent startup I/O calls fanned in through
// an errgroup. Only the GPIO bank is load-bearing: a missing or
// broken model disables generation but isn't fatal.
func (a *app) setupHardware() {
	if a.ctx.Err() != nil {
		return
	}

	g, _ := errgroup.WithContext(a.ctx)

	g.Go(func() error {
		bank, err := gpiobank.Open(a.cfg.BuzzerPins, a.cfg.StopPin)
		if err != nil {
			return err
		}
		a.bank = bank
		return nil
	})

	g.Go(func() error {
		if a.cfg.ModelPath == "" {
			logger.Infof("no model path configured, generation disabled")
			return nil
		}
		model, err := gpt.Load(a.cfg.ModelPath)
		if err != nil {
			logger.Warningf("model load failed, generation disabled: %v", err)
			return nil
		}
		a.model = model
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Criticalf("hardware setup failed: %v", err)
		os.Exit(1)
	}
}

func (a *app) setupScreen() {
	if a.ctx.Err() != nil {
		return
	}

	screen, err := statusdisplay.NewScreen()
	if err != nil {
		logger.Infof("no status display attached, continuing without one: %v", err)
		return
	}
	a.screen = screen
}
