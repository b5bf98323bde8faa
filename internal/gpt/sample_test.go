package gpt

import (
	"math/rand"
	"testing"
)

func TestSampleTokenZeroTemperatureIsArgmax(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	logits := []float32{0.1, 5.0, -2.0, 0.4}
	got := sampleToken(rng, logits, 0, 0)
	if got != 1 {
		t.Fatalf("sampleToken with temperature<=0 = %d, want argmax index 1", got)
	}
}

func TestArgmaxPicksLargestLogit(t *testing.T) {
	logits := []float32{-1, 3, 2, 3.5}
	if got := argmax(logits); got != 3 {
		t.Fatalf("argmax = %d, want 3", got)
	}
}

func TestApplyTopKMasksEverythingOutsideK(t *testing.T) {
	logits := []float32{5, 1, 4, 2, 3}
	applyTopK(logits, 2)

	kept := 0
	for _, v := range logits {
		if v > -1e8 {
			kept++
		}
	}
	if kept != 2 {
		t.Fatalf("expected exactly 2 logits to survive top-2 masking, got %d", kept)
	}
	if logits[0] <= -1e8 || logits[2] <= -1e8 {
		t.Fatalf("expected the two largest logits (indices 0 and 2) to survive")
	}
}

func TestApplyRepetitionPenaltyDampensPositiveLogit(t *testing.T) {
	logits := []float32{10, 10}
	applyRepetitionPenalty(logits, []int{0})
	if logits[0] >= 10 {
		t.Fatalf("expected token 0's positive logit to shrink toward zero, got %v", logits[0])
	}
	if logits[1] != 10 {
		t.Fatalf("expected an untouched logit for a token outside the recent window")
	}
}

func TestApplyRepetitionPenaltyPushesNegativeLogitFurtherNegative(t *testing.T) {
	logits := []float32{-10, -10}
	applyRepetitionPenalty(logits, []int{0})
	if logits[0] >= -10 {
		t.Fatalf("expected token 0's negative logit to move further from zero, got %v", logits[0])
	}
}

func TestApplyRepetitionPenaltyIgnoresOutOfRangeTokens(t *testing.T) {
	logits := []float32{1, 2}
	applyRepetitionPenalty(logits, []int{-1, 99})
	if logits[0] != 1 || logits[1] != 2 {
		t.Fatalf("out-of-range recent token ids must not touch in-range logits")
	}
}
