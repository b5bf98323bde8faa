// Package device owns every other component as a single object passed
// by reference: the buzzer bank, the PWM engine, the song catalog, the
// melody scheduler currently playing, the {IDLE,PLAYING} state machine,
// the WebSocket hub, and the generation worker. Nothing here runs on
// its own — cmd/buzzerd constructs one Device and drives it.
package device

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/juju/loggo"

	"code.musicbuzzer.dev/buzzer/internal/apperr"
	"code.musicbuzzer.dev/buzzer/internal/button"
	"code.musicbuzzer.dev/buzzer/internal/catalog"
	"code.musicbuzzer.dev/buzzer/internal/config"
	"code.musicbuzzer.dev/buzzer/internal/devstate"
	"code.musicbuzzer.dev/buzzer/internal/genworker"
	"code.musicbuzzer.dev/buzzer/internal/gpiobank"
	"code.musicbuzzer.dev/buzzer/internal/gpt"
	"code.musicbuzzer.dev/buzzer/internal/health"
	"code.musicbuzzer.dev/buzzer/internal/melody"
	"code.musicbuzzer.dev/buzzer/internal/notes"
	"code.musicbuzzer.dev/buzzer/internal/pwm"
	"code.musicbuzzer.dev/buzzer/internal/statusdisplay"
	"code.musicbuzzer.dev/buzzer/internal/wsctl"
)

var logger = loggo.GetLogger("main.device")

// tickInterval is how often the melody scheduler and button debouncer
// are advanced — the Go stand-in for the original's per-loop-iteration
// millis() polling.
const tickInterval = 10 * time.Millisecond

// defaultGenTemperature seeds GenerationContext.temperature until a
// "gen:temp:<f>" command sets it explicitly.
const defaultGenTemperature = 0.8

// genSeedPrompt seeds every generation run; the model was trained to
// continue an MML fragment, not answer a blank page.
const genSeedPrompt = "MML@"

// Device wires every component together and drives the main loop.
type Device struct {
	cfg    *config.Config
	bank   *gpiobank.Bank
	engine *pwm.Engine
	cat    *catalog.Catalog
	state  *devstate.Machine
	hub    *wsctl.Hub
	worker *genworker.Worker
	btn    *button.Debouncer
	screen *statusdisplay.Screen

	mu        sync.Mutex
	scheduler *melody.Scheduler
	genTemp   float32
}

// New constructs a Device. model and screen may be nil — a missing
// model disables generation (ModelAbsent on every "gen" command) and a
// missing screen simply means nothing mirrors state to an OLED.
func New(cfg *config.Config, bank *gpiobank.Bank, model *gpt.Model, healthChecker *health.Checker, screen *statusdisplay.Screen) *Device {
	outputs := bank.BuzzerOutputs()
	pins := make([]pwm.OutputPin, len(outputs))
	for i, o := range outputs {
		pins[i] = o
	}

	d := &Device{
		cfg:     cfg,
		bank:    bank,
		engine:  pwm.New(pins, uint32(cfg.SampleRateHz), uint8(cfg.DefaultVolume)),
		cat:     catalog.New(cfg.MaxNotes, cfg.MaxTracks),
		worker:  genworker.New(model, healthChecker),
		btn:     button.New(bank.StopButton()),
		screen:  screen,
		genTemp: defaultGenTemperature,
	}
	d.state = devstate.New(d, time.Duration(cfg.SettleMs)*time.Millisecond)
	d.hub = wsctl.NewHub(d)
	return d
}

// Hub returns the WebSocket hub for mounting on an HTTP mux.
func (d *Device) Hub() *wsctl.Hub { return d.hub }

// Engine returns the PWM engine so the caller can drive its sample-rate
// tick loop on its own goroutine.
func (d *Device) Engine() *pwm.Engine { return d.engine }

// LoadCatalog populates the song catalog from dir.
func (d *Device) LoadCatalog(dir string) error {
	return d.cat.Load(dir)
}

// Catalog exposes the manifest for the /songs.json endpoint.
func (d *Device) Catalog() *catalog.Catalog { return d.cat }

// Broadcast implements devstate.Broadcaster, fanning a status frame out
// to every connected WebSocket client and refreshing the OLED, if any.
func (d *Device) Broadcast(msg string) {
	if d.hub != nil {
		d.hub.Broadcast(msg)
	}
	d.updateScreen()
}

// updateScreen mirrors the current song, volume, and generation status
// onto the status display. A no-op if no screen is attached.
func (d *Device) updateScreen() {
	if d.screen == nil {
		return
	}

	state, name := d.state.Snapshot()
	line0 := "IDLE"
	if state == devstate.Playing {
		line0 = name
	}

	genStatus := "GPT: unavailable"
	switch {
	case !d.worker.Available():
		genStatus = "GPT: unavailable"
	case d.worker.Busy():
		genStatus = "GPT: busy"
	default:
		genStatus = "GPT: ready"
	}

	_ = d.screen.WriteLine(0, line0)
	_ = d.screen.WriteLine(1, "vol "+strconv.Itoa(int(d.engine.Volume()))+"%")
	_ = d.screen.WriteLine(2, genStatus)
}

// StatusSnapshot implements wsctl.Handler, used to greet a newly
// connected client with the current state: current playback (nothing
// if idle), volume, and generation availability.
func (d *Device) StatusSnapshot() []string {
	frames := make([]string, 0, 3)
	if state, name := d.state.Snapshot(); state == devstate.Playing {
		frames = append(frames, "playing:"+name)
	}
	frames = append(frames, "vol:"+strconv.Itoa(int(d.engine.Volume())))
	gptStatus := "0"
	if d.worker.Available() {
		gptStatus = "1"
	}
	return append(frames, "status:gpt:"+gptStatus)
}

// Handle implements wsctl.Handler, dispatching one parsed command.
func (d *Device) Handle(cmd wsctl.Command) error {
	switch cmd.Kind {
	case wsctl.CmdPlay:
		return d.playIndex(cmd.SongIndex)
	case wsctl.CmdStop:
		d.stop()
		return nil
	case wsctl.CmdVolume:
		d.engine.SetVolume(uint8(cmd.Volume))
		d.hub.Broadcast("vol:" + strconv.Itoa(cmd.Volume))
		d.updateScreen()
		return nil
	case wsctl.CmdSetTemperature:
		d.mu.Lock()
		d.genTemp = cmd.Temperature
		d.mu.Unlock()
		return nil
	case wsctl.CmdGenerate:
		d.mu.Lock()
		temp := d.genTemp
		d.mu.Unlock()
		return d.startGeneration(temp)
	case wsctl.CmdGenerateStop:
		d.worker.Stop()
		return nil
	default:
		return apperr.New(apperr.MalformedCommand, "unknown command kind")
	}
}

// genErrFrame maps a synchronous Start failure to the fixed gen:err:*
// frame the corresponding error kind must report over the WebSocket.
func genErrFrame(err error) (string, bool) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return "", false
	}
	switch kind {
	case apperr.ModelAbsent:
		return "gen:err:no model", true
	case apperr.GenerationBusy:
		return "gen:err:busy", true
	case apperr.LowMemory:
		return "gen:err:low memory", true
	default:
		return "", false
	}
}

func (d *Device) playIndex(index int) error {
	tracks, name, err := d.cat.Play(index)
	if err != nil {
		return err
	}
	d.startPlayback(tracks, name)
	return nil
}

func (d *Device) startPlayback(tracks []notes.Track, name string) {
	assignments := melody.AssignTracks(len(tracks), d.cfg.NumBuzzers)

	players := make([]*melody.Player, len(assignments))
	for i, a := range assignments {
		p := melody.NewPlayer(d.engine, a.BuzzerIndex, a.Shift)
		p.Load(tracks[a.TrackIndex])
		players[i] = p
	}

	scheduler := melody.NewScheduler(players, uint32(d.cfg.LoopPauseMs))

	d.mu.Lock()
	old := d.scheduler
	d.scheduler = scheduler
	d.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	d.state.EnterPlaying(name)
}

func (d *Device) stop() {
	d.mu.Lock()
	s := d.scheduler
	d.scheduler = nil
	d.mu.Unlock()

	if s != nil {
		s.Stop()
	}
	d.cat.EvictOrdinary()
	d.state.EnterIdle()
}

func (d *Device) startGeneration(temp float32) error {
	err := d.worker.Start(context.Background(), genSeedPrompt, temp, func(tok string) {
		d.hub.Broadcast("gen:t:" + tok)
	})
	if err != nil {
		if frame, ok := genErrFrame(err); ok {
			d.hub.Broadcast(frame)
		}
		d.updateScreen()
		return err
	}

	d.hub.Broadcast("gen:start")
	d.updateScreen()
	return nil
}

// Run drives the melody scheduler, button debouncer, and generation
// worker until ctx is cancelled.
func (d *Device) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return

		case now := <-ticker.C:
			dt := uint32(now.Sub(last).Milliseconds())
			last = now
			d.tick(now, dt)

		case res := <-d.worker.Results():
			d.handleGenerationResult(res)
		}
	}
}

func (d *Device) tick(now time.Time, dtMs uint32) {
	d.mu.Lock()
	s := d.scheduler
	d.mu.Unlock()

	active := false
	if s != nil {
		s.Update(dtMs)
		active = s.Active()
	}
	d.state.Tick(active, now)

	if pressed, edge := d.btn.Poll(now); edge && pressed {
		d.stop()
	}
}

func (d *Device) handleGenerationResult(res genworker.Result) {
	defer d.updateScreen()

	if res.Err != nil {
		logger.Warningf("generation failed: %v", res.Err)
		if kind, ok := apperr.KindOf(res.Err); ok && kind == apperr.Aborted {
			d.hub.Broadcast("gen:err:aborted")
		} else {
			d.hub.Broadcast("gen:err:failed")
		}
		return
	}

	d.hub.Broadcast("gen:done:" + res.MML)

	tracks, err := d.cat.PlayGenerated(res.MML)
	if err != nil {
		logger.Warningf("generated song failed to parse: %v", err)
		return
	}

	d.startPlayback(tracks, "generated")
}
