// Package genworker owns the mini-GPT generation worker's lifecycle:
// at most one generation running at a time, cancellable mid-run, its
// finished MML text handed back through a single-slot result queue so
// the device loop can pick it up on its own schedule rather than
// blocking the worker goroutine on a consumer.
package genworker

import (
	"context"
	"sync"

	"code.musicbuzzer.dev/buzzer/internal/apperr"
	"code.musicbuzzer.dev/buzzer/internal/gpt"
	"code.musicbuzzer.dev/buzzer/internal/health"
)

// minHeadroomKB is the free-memory floor a generation run requires
// before it is allowed to start, matching the original firmware's
// refusal to kick off a model forward pass under memory pressure.
const minHeadroomKB = 32 * 1024

// maxGenTokens bounds how many tokens a single generation run produces.
const maxGenTokens = 900

// Result is a finished (or failed, or aborted) generation run.
type Result struct {
	MML string
	Err error
}

// StreamFunc is invoked with each generated token's text as it streams
// out of the model, typically wired to broadcast partial progress over
// the WebSocket control channel.
type StreamFunc func(tokenStr string)

// Worker runs mini-GPT generations one at a time.
type Worker struct {
	model  *gpt.Model
	health *health.Checker

	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc

	results chan Result
}

// New builds a worker over model. model may be nil if no model file was
// configured, in which case every Start call fails with ModelAbsent.
func New(model *gpt.Model, h *health.Checker) *Worker {
	return &Worker{model: model, health: h, results: make(chan Result, 1)}
}

// Busy reports whether a generation is currently running.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Available reports whether a model was loaded at all. A worker with no
// model fails every Start call with ModelAbsent rather than ever going
// busy, so status reporting needs this distinct from Busy.
func (w *Worker) Available() bool {
	return w.model != nil
}

// Results is where finished generations arrive. It is always buffered
// to exactly one pending result, matching the single reserved catalog
// slot a generated song occupies.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Start kicks off a generation from prompt at the given temperature.
// It fails fast with GenerationBusy, ModelAbsent, or LowMemory instead
// of queuing — the device has exactly one generation slot, not a
// backlog.
func (w *Worker) Start(ctx context.Context, prompt string, temperature float32, onToken StreamFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.busy {
		return apperr.New(apperr.GenerationBusy, "a generation is already running")
	}
	if w.model == nil {
		return apperr.New(apperr.ModelAbsent, "no model loaded")
	}
	if w.health != nil && !w.health.HasHeadroom(minHeadroomKB) {
		return apperr.New(apperr.LowMemory, "insufficient free memory to start generation")
	}

	genCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.busy = true

	go w.run(genCtx, prompt, temperature, onToken)
	return nil
}

func (w *Worker) run(ctx context.Context, prompt string, temperature float32, onToken StreamFunc) {
	text, err := w.model.Generate(ctx, prompt, maxGenTokens, temperature, func(tok string) bool {
		if onToken != nil {
			onToken(tok)
		}
		return true
	})

	// publish the result and go idle under one lock, so a Busy() of false
	// always means the result is already in the channel.
	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	w.cancel = nil

	select {
	case w.results <- Result{MML: text, Err: err}:
	default:
		// a previous result was never collected; drop it in favor of
		// the fresher one rather than blocking the worker goroutine.
		select {
		case <-w.results:
		default:
		}
		w.results <- Result{MML: text, Err: err}
	}
}

// Stop cancels any generation currently running. A no-op if idle.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}
