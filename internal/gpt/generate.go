package gpt

import (
	"context"
	"math/rand"
	"strings"

	"code.musicbuzzer.dev/buzzer/internal/apperr"
)

// DefaultTopK matches the original firmware's sampler default.
const DefaultTopK = 40

// yieldEvery controls how often Generate checks ctx between forward
// passes; the original calls vTaskDelay(1) every 10 tokens so other
// tasks on the same core get scheduled. Go's scheduler doesn't need
// that, but checking ctx on the same cadence keeps an abort's latency
// bounded and comparable.
const yieldEvery = 10

// StreamFunc receives one generated token's text as it is produced.
// Returning false stops generation early, same as an abort.
type StreamFunc func(tokenStr string) bool

// Generate runs the prompt through the model, then samples up to
// maxTokens further tokens, invoking cb with each one's text as it is
// produced. It returns the full text (prompt plus generated tokens).
// Generation stops on maxTokens, the model's block size, a PAD or EOS
// token, ctx cancellation, or cb returning false.
func (m *Model) Generate(ctx context.Context, prompt string, maxTokens int, temperature float32, cb StreamFunc) (string, error) {
	if maxTokens <= 0 {
		maxTokens = int(m.Config.MaxSeqLen)
	}

	promptTokens := m.Encode(prompt)
	if len(promptTokens) == 0 {
		return "", apperr.New(apperr.ParseBound, "prompt produced no tokens")
	}

	rs := newRunState(m.Config)
	rng := rand.New(rand.NewSource(1))

	var result strings.Builder
	result.WriteString(prompt)

	pos := 0
	for _, tok := range promptTokens {
		if pos >= int(m.Config.MaxSeqLen) {
			return result.String(), apperr.New(apperr.ParseBound, "prompt exceeds model context")
		}
		forwardToken(m, rs, tok, pos)
		pos++
	}

	recent := make([]int, 0, repetitionWindow)
	lastTok := promptTokens[len(promptTokens)-1]

	for i := 0; i < maxTokens; i++ {
		if pos >= int(m.Config.MaxSeqLen) {
			break
		}
		if i%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				return result.String(), apperr.New(apperr.Aborted, "generation cancelled")
			default:
			}
		}

		forwardToken(m, rs, lastTok, pos)
		pos++

		applyRepetitionPenalty(rs.logits, recent)
		next := sampleToken(rng, rs.logits, temperature, DefaultTopK)

		if next == PadToken || next == EOSToken {
			break
		}

		tokenStr := m.Decode(next)
		result.WriteString(tokenStr)
		if cb != nil && !cb(tokenStr) {
			break
		}

		recent = append(recent, next)
		if len(recent) > repetitionWindow {
			recent = recent[1:]
		}
		lastTok = next
	}

	return result.String(), nil
}
