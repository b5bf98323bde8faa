// Command midimon is a bench-test utility: it lists available MIDI
// input ports and, given one, drives the buzzer bank directly off
// incoming NoteOn/NoteOff messages — useful for checking buzzer wiring
// and tuning without going through the WebSocket control plane at all.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"code.musicbuzzer.dev/buzzer/internal/config"
	"code.musicbuzzer.dev/buzzer/internal/gpiobank"
	"code.musicbuzzer.dev/buzzer/internal/notes"
	"code.musicbuzzer.dev/buzzer/internal/pwm"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "play":
		var portIndex int
		if len(os.Args) >= 3 {
			if n, err := strconv.Atoi(os.Args[2]); err == nil {
				portIndex = n
			}
		}
		play(portIndex)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("midimon: MIDI bench test for the buzzer bank")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  list        list MIDI input ports")
	fmt.Println("  play [n]    drive the buzzer bank from MIDI port n (default 0)")
}

func listPorts() {
	for i, p := range midi.GetInPorts() {
		fmt.Printf("%d: %s\n", i, p.String())
	}
}

// play opens MIDI input port index and round-robins incoming notes
// across the configured buzzer bank: each NoteOn claims the
// least-recently-used buzzer voice, each NoteOff silences whichever
// voice is currently sounding that pitch.
func play(index int) {
	cfg := config.Get()

	bank, err := gpiobank.Open(cfg.BuzzerPins, cfg.StopPin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpio open failed: %v\n", err)
		os.Exit(1)
	}

	outputs := bank.BuzzerOutputs()
	pins := make([]pwm.OutputPin, len(outputs))
	for i, o := range outputs {
		pins[i] = o
	}
	engine := pwm.New(pins, uint32(cfg.SampleRateHz), uint8(cfg.DefaultVolume))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	ins := midi.GetInPorts()
	if index < 0 || index >= len(ins) {
		fmt.Fprintf(os.Stderr, "port %d out of range (have %d)\n", index, len(ins))
		os.Exit(1)
	}
	in := ins[index]
	if err := in.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "open port %q: %v\n", in.String(), err)
		os.Exit(1)
	}
	defer in.Close()

	voices := newVoiceMap(len(pins))

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		if msg.GetNoteStart(&ch, &key, &vel) {
			buzzer := voices.claim(int(key))
			if buzzer < 0 {
				return
			}
			freq := notes.NoteFreq(uint8(int(key)%12), uint8(int(key)/12))
			engine.SetTone(buzzer, freq)
			fmt.Printf("note on  key=%d buzzer=%d freq=%d\n", key, buzzer, freq)
		} else if msg.GetNoteEnd(&ch, &key) {
			if buzzer, ok := voices.release(int(key)); ok {
				engine.Stop(buzzer)
				fmt.Printf("note off key=%d buzzer=%d\n", key, buzzer)
			}
		}
	}, midi.HandleError(func(listenErr error) {
		fmt.Fprintf(os.Stderr, "midi listen error: %v\n", listenErr)
	}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen %q: %v\n", in.String(), err)
		os.Exit(1)
	}
	defer stop()

	fmt.Printf("driving %d buzzer(s) from %q, ctrl-c to quit\n", len(pins), in.String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}

// voiceMap assigns incoming MIDI keys to physical buzzers one-to-one,
// so each sounding note keeps its own voice until its NoteOff arrives.
type voiceMap struct {
	numVoices int
	byKey     map[int]int
	freeList  []int
}

func newVoiceMap(numVoices int) *voiceMap {
	free := make([]int, numVoices)
	for i := range free {
		free[i] = i
	}
	return &voiceMap{numVoices: numVoices, byKey: make(map[int]int), freeList: free}
}

func (v *voiceMap) claim(key int) int {
	if len(v.freeList) == 0 {
		return -1
	}
	buzzer := v.freeList[0]
	v.freeList = v.freeList[1:]
	v.byKey[key] = buzzer
	return buzzer
}

func (v *voiceMap) release(key int) (int, bool) {
	buzzer, ok := v.byKey[key]
	if !ok {
		return 0, false
	}
	delete(v.byKey, key)
	v.freeList = append(v.freeList, buzzer)
	return buzzer, true
}
