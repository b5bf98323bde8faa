package gpt

import "math/rand"

// repetitionWindow and repetitionPenalty match the original sampler:
// logits for any token seen in the last repetitionWindow generated
// tokens are penalized with sign-aware scaling: a positive logit is
// divided by repetitionPenalty and a negative one multiplied by it, so
// both become less likely.
const (
	repetitionWindow  = 30
	repetitionPenalty = 1.2
)

// applyRepetitionPenalty dampens logits for tokens present in recent,
// the rolling window of already-generated token ids.
func applyRepetitionPenalty(logits []float32, recent []int) {
	seen := make(map[int]bool, len(recent))
	for _, t := range recent {
		seen[t] = true
	}
	for tok := range seen {
		if tok < 0 || tok >= len(logits) {
			continue
		}
		if logits[tok] > 0 {
			logits[tok] /= repetitionPenalty
		} else {
			logits[tok] *= repetitionPenalty
		}
	}
}

// sampleToken applies temperature scaling, an optional top-k cutoff,
// and softmax, then draws one token id from the resulting distribution.
// topK <= 0 disables the cutoff (dense sampling over the full
// vocabulary).
func sampleToken(rng *rand.Rand, logits []float32, temperature float32, topK int) int {
	if temperature <= 0 {
		return argmax(logits)
	}

	scaled := make([]float32, len(logits))
	for i, v := range logits {
		scaled[i] = v / temperature
	}

	if topK > 0 && topK < len(scaled) {
		applyTopK(scaled, topK)
	}

	softmax(scaled)

	draw := rng.Float32()
	var cum float32
	for i, p := range scaled {
		cum += p
		if draw <= cum {
			return i
		}
	}
	return len(scaled) - 1
}

// applyTopK zeroes (via a large negative logit, so softmax sends it to
// ~0) every entry outside the k largest, using an O(k*n) partial
// selection rather than a full sort.
type scored struct {
	idx int
	val float32
}

func applyTopK(logits []float32, k int) {
	top := make([]scored, 0, k)
	for i, v := range logits {
		if len(top) < k {
			top = append(top, scored{i, v})
			if len(top) == k {
				sortDesc(top)
			}
			continue
		}
		if v > top[k-1].val {
			top[k-1] = scored{i, v}
			sortDesc(top)
		}
	}
	if len(top) < k {
		sortDesc(top)
	}

	threshold := top[len(top)-1].val
	for i, v := range logits {
		if v < threshold {
			logits[i] = -1e9
		}
	}
}

// sortDesc insertion-sorts a short slice by val descending; k is always
// small (tens, not thousands), so this beats pulling in sort.Slice.
func sortDesc(s []scored) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j].val < v.val {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

func argmax(logits []float32) int {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return best
}
