package genworker

import (
	"context"
	"testing"
	"time"

	"code.musicbuzzer.dev/buzzer/internal/apperr"
	"code.musicbuzzer.dev/buzzer/internal/gpt"
)

// padBiasedModel builds a tiny, fully-wired model whose weights are
// biased so the very first sampled token is always PAD — Generate
// returns almost immediately, which keeps these lifecycle tests fast
// and deterministic without needing to control multi-step sampling.
func padBiasedModel() *gpt.Model {
	cfg := gpt.Config{VocabSize: 4, Dim: 2, NumLayers: 1, NumHeads: 1, HiddenDim: 2, MaxSeqLen: 32}

	quant := func(rows, cols int, fill int8) gpt.QuantMatrix {
		data := make([]int8, rows*cols)
		for i := range data {
			data[i] = fill
		}
		scale := make([]float32, rows)
		for i := range scale {
			scale[i] = 1
		}
		return gpt.QuantMatrix{Data: data, Scale: scale, Rows: rows, Cols: cols}
	}
	floats := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = 1
		}
		return out
	}

	lmHead := quant(4, 2, 0)
	lmHead.Data[0], lmHead.Data[1] = 1, 1
	lmHead.Scale[0] = 100

	return &gpt.Model{
		Config: cfg,
		Weights: gpt.Weights{
			TokenEmbed: quant(4, 2, 1),
			PosEmbed:   quant(32, 2, 1),
			Layers: []gpt.Layer{{
				AttnNorm: floats(2),
				WQ:       quant(2, 2, 1),
				WK:       quant(2, 2, 1),
				WV:       quant(2, 2, 1),
				WO:       quant(2, 2, 1),
				FFNNorm:  floats(2),
				W1:       quant(2, 2, 1),
				W2:       quant(2, 2, 1),
			}},
			FinalNorm: floats(2),
			LMHead:    lmHead,
		},
		Tokens: gpt.TokenMap{Tokens: [][]byte{
			[]byte(""), []byte(""), []byte(""), []byte("A"),
		}},
	}
}

func TestNewWorkerIsNotBusyInitially(t *testing.T) {
	w := New(padBiasedModel(), nil)
	if w.Busy() {
		t.Fatalf("a fresh worker should not be busy")
	}
}

func TestStartFailsFastWhenModelNil(t *testing.T) {
	w := New(nil, nil)
	err := w.Start(context.Background(), "A", 0.8, nil)
	if kind, ok := apperr.KindOf(err); !ok || kind != apperr.ModelAbsent {
		t.Fatalf("expected ModelAbsent, got %v", err)
	}
}

func TestAvailableReflectsWhetherAModelWasLoaded(t *testing.T) {
	if (New(nil, nil)).Available() {
		t.Fatalf("Available() = true with nil model")
	}
	if !(New(padBiasedModel(), nil)).Available() {
		t.Fatalf("Available() = false with a loaded model")
	}
}

func TestStartFailsFastWhenAlreadyBusy(t *testing.T) {
	w := New(padBiasedModel(), nil)
	w.mu.Lock()
	w.busy = true
	w.mu.Unlock()

	err := w.Start(context.Background(), "A", 0.8, nil)
	if kind, ok := apperr.KindOf(err); !ok || kind != apperr.GenerationBusy {
		t.Fatalf("expected GenerationBusy, got %v", err)
	}
}

func TestStopInvokesTrackedCancelFunc(t *testing.T) {
	w := New(padBiasedModel(), nil)
	cancelled := false
	w.mu.Lock()
	w.cancel = func() { cancelled = true }
	w.mu.Unlock()

	w.Stop()
	if !cancelled {
		t.Fatalf("expected Stop to invoke the tracked cancel func")
	}
}

func TestStopIsANoopWhenIdle(t *testing.T) {
	w := New(padBiasedModel(), nil)
	w.Stop() // must not panic with cancel == nil
}

func TestStartPublishesResultAndClearsBusy(t *testing.T) {
	w := New(padBiasedModel(), nil)
	if err := w.Start(context.Background(), "A", 0, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case res := <-w.Results():
		if res.Err != nil {
			t.Fatalf("unexpected generation error: %v", res.Err)
		}
		if res.MML != "A" {
			t.Fatalf("MML = %q, want the prompt unchanged (first token is PAD)", res.MML)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a result")
	}

	if w.Busy() {
		t.Fatalf("expected the worker to be idle once generation finishes")
	}
}

func TestResultChannelKeepsOnlyNewestWhenUnconsumed(t *testing.T) {
	w := New(padBiasedModel(), nil)

	waitIdle := func() {
		for i := 0; i < 100 && w.Busy(); i++ {
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := w.Start(context.Background(), "A", 0, nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	waitIdle()

	if err := w.Start(context.Background(), "AA", 0, nil); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	waitIdle()

	select {
	case res := <-w.Results():
		if res.MML != "AA" {
			t.Fatalf("MML = %q, want the newer unconsumed result AA", res.MML)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a result")
	}

	select {
	case res := <-w.Results():
		t.Fatalf("expected only one buffered result, got an extra: %+v", res)
	default:
	}
}
