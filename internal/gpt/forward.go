package gpt

import "math"

// runState holds the per-sequence activation buffers and KV cache the
// forward pass reuses across every generated token, so a generation run
// allocates once up front instead of on every step.
type runState struct {
	x       []float32 // residual stream, dim
	xb      []float32 // normed scratch, dim
	q       []float32 // dim
	attnOut []float32 // dim
	hidden  []float32 // hiddenDim
	logits  []float32 // vocab

	// keyCache/valueCache: [layer][pos][dim]
	keyCache   [][][]float32
	valueCache [][][]float32
}

func newRunState(cfg Config) *runState {
	dim := int(cfg.Dim)
	hidden := int(cfg.HiddenDim)
	vocab := int(cfg.VocabSize)
	maxSeq := int(cfg.MaxSeqLen)
	layers := int(cfg.NumLayers)

	rs := &runState{
		x:       make([]float32, dim),
		xb:      make([]float32, dim),
		q:       make([]float32, dim),
		attnOut: make([]float32, dim),
		hidden:  make([]float32, hidden),
		logits:  make([]float32, vocab),
	}
	rs.keyCache = make([][][]float32, layers)
	rs.valueCache = make([][][]float32, layers)
	for l := 0; l < layers; l++ {
		rs.keyCache[l] = make([][]float32, maxSeq)
		rs.valueCache[l] = make([][]float32, maxSeq)
	}
	return rs
}

// rmsnorm writes the RMS-normalized, weight-scaled form of x into out.
func rmsnorm(out, x, weight []float32) {
	const eps = 1e-5
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	scale := float32(1.0 / math.Sqrt(float64(ss)/float64(len(x))+eps))
	for i, v := range x {
		out[i] = v * scale * weight[i]
	}
}

// matmulInt8 computes out = m * vec, where m is row-wise INT8-quantized:
// out[r] = (sum_c m.Data[r,c] * vec[c]) * m.Scale[r].
func matmulInt8(out []float32, vec []float32, m QuantMatrix) {
	for r := 0; r < m.Rows; r++ {
		row := m.Data[r*m.Cols : r*m.Cols+m.Cols]
		var sum float32
		c := 0
		for ; c+4 <= m.Cols; c += 4 {
			sum += float32(row[c])*vec[c] +
				float32(row[c+1])*vec[c+1] +
				float32(row[c+2])*vec[c+2] +
				float32(row[c+3])*vec[c+3]
		}
		for ; c < m.Cols; c++ {
			sum += float32(row[c]) * vec[c]
		}
		out[r] = sum * m.Scale[r]
	}
}

// forwardToken runs token at position pos through every transformer
// layer, writing the final logits into rs.logits. pos indexes the KV
// cache slot this token occupies; callers must advance pos by one for
// every token forwarded, prompt or generated.
func forwardToken(m *Model, rs *runState, token int, pos int) {
	cfg := m.Config
	dim := int(cfg.Dim)
	numHeads := int(cfg.NumHeads)
	headDim := dim / numHeads

	embedRow(rs.x, m.Weights.TokenEmbed, token)
	addEmbedRow(rs.x, m.Weights.PosEmbed, pos)

	for li := range m.Weights.Layers {
		l := &m.Weights.Layers[li]

		rmsnorm(rs.xb, rs.x, l.AttnNorm)

		matmulInt8(rs.q, rs.xb, l.WQ)
		key := make([]float32, dim)
		val := make([]float32, dim)
		matmulInt8(key, rs.xb, l.WK)
		matmulInt8(val, rs.xb, l.WV)
		rs.keyCache[li][pos] = key
		rs.valueCache[li][pos] = val

		for h := 0; h < numHeads; h++ {
			lo, hi := h*headDim, h*headDim+headDim
			scores := make([]float32, pos+1)
			scale := float32(1.0 / math.Sqrt(float64(headDim)))
			for t := 0; t <= pos; t++ {
				k := rs.keyCache[li][t][lo:hi]
				var dot float32
				for i := 0; i < headDim; i++ {
					dot += rs.q[lo+i] * k[i]
				}
				scores[t] = dot * scale
			}
			softmax(scores)

			for i := 0; i < headDim; i++ {
				var acc float32
				for t := 0; t <= pos; t++ {
					acc += scores[t] * rs.valueCache[li][t][lo+i]
				}
				rs.attnOut[lo+i] = acc
			}
		}

		matmulInt8(rs.xb, rs.attnOut, l.WO)
		for i := range rs.x {
			rs.x[i] += rs.xb[i]
		}

		rmsnorm(rs.xb, rs.x, l.FFNNorm)
		matmulInt8(rs.hidden, rs.xb, l.W1)
		for i, v := range rs.hidden {
			if v < 0 {
				rs.hidden[i] = 0
			}
		}
		matmulInt8(rs.xb, rs.hidden, l.W2)
		for i := range rs.x {
			rs.x[i] += rs.xb[i]
		}
	}

	rmsnorm(rs.xb, rs.x, m.Weights.FinalNorm)
	matmulInt8(rs.logits, rs.xb, m.Weights.LMHead)
}

func embedRow(out []float32, m QuantMatrix, row int) {
	for c := 0; c < m.Cols; c++ {
		out[c] = float32(m.Data[row*m.Cols+c]) * m.Scale[row]
	}
}

func addEmbedRow(out []float32, m QuantMatrix, row int) {
	for c := 0; c < m.Cols; c++ {
		out[c] += float32(m.Data[row*m.Cols+c]) * m.Scale[row]
	}
}

// softmax applies an in-place, numerically stable softmax to x.
func softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range x {
		e := float32(math.Exp(float64(v - max)))
		x[i] = e
		sum += e
	}
	if sum <= 0 {
		return
	}
	for i := range x {
		x[i] /= sum
	}
}
