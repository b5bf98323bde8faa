package gpt

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"

	"code.musicbuzzer.dev/buzzer/internal/apperr"
)

var magic = [4]byte{'M', 'G', 'P', 'T'}

const (
	quantInt8 uint8 = 1
	maxTokenLen     = 16
)

// Load reads a model file wholesale and decodes it into a Model. The
// original firmware zero-copies a malloc'd buffer's pointers directly
// into its weight structs; encoding/binary pays one pass over the bytes
// here instead of reaching for unsafe.
func Load(path string) (*Model, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, apperr.Newf(apperr.ModelAbsent, "read model %s: %v", path, err)
	}
	return Decode(raw)
}

// Decode parses a model file already read into memory.
func Decode(raw []byte) (*Model, error) {
	r := bytes.NewReader(raw)

	var gotMagic [4]byte
	if err := binary.Read(r, binary.LittleEndian, &gotMagic); err != nil || gotMagic != magic {
		return nil, apperr.New(apperr.ModelAbsent, "bad model magic")
	}

	var version uint32
	var quantType uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, apperr.New(apperr.ModelAbsent, "truncated model header")
	}
	if err := binary.Read(r, binary.LittleEndian, &quantType); err != nil {
		return nil, apperr.New(apperr.ModelAbsent, "truncated model header")
	}
	if quantType != quantInt8 {
		return nil, apperr.Newf(apperr.ModelAbsent, "unsupported quant type %d", quantType)
	}

	var cfg Config
	for _, field := range []*uint32{&cfg.VocabSize, &cfg.Dim, &cfg.NumLayers, &cfg.NumHeads, &cfg.HiddenDim, &cfg.MaxSeqLen} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, apperr.New(apperr.ModelAbsent, "truncated model config")
		}
	}
	if cfg.VocabSize == 0 || cfg.Dim == 0 || cfg.NumLayers == 0 || cfg.NumHeads == 0 {
		return nil, apperr.New(apperr.ModelAbsent, "degenerate model config")
	}

	tokens, err := readTokenTable(r)
	if err != nil {
		return nil, err
	}

	if err := align4(r); err != nil {
		return nil, err
	}

	dim := int(cfg.Dim)
	hidden := int(cfg.HiddenDim)
	vocab := int(cfg.VocabSize)
	maxSeq := int(cfg.MaxSeqLen)

	tokenEmbed, err := readQuantMatrix(r, vocab, dim)
	if err != nil {
		return nil, err
	}
	posEmbed, err := readQuantMatrix(r, maxSeq, dim)
	if err != nil {
		return nil, err
	}

	layers := make([]Layer, cfg.NumLayers)
	for i := range layers {
		l := &layers[i]
		if l.AttnNorm, err = readFloats(r, dim); err != nil {
			return nil, err
		}
		if l.WQ, err = readQuantMatrix(r, dim, dim); err != nil {
			return nil, err
		}
		if l.WK, err = readQuantMatrix(r, dim, dim); err != nil {
			return nil, err
		}
		if l.WV, err = readQuantMatrix(r, dim, dim); err != nil {
			return nil, err
		}
		if l.WO, err = readQuantMatrix(r, dim, dim); err != nil {
			return nil, err
		}
		if l.FFNNorm, err = readFloats(r, dim); err != nil {
			return nil, err
		}
		if l.W1, err = readQuantMatrix(r, hidden, dim); err != nil {
			return nil, err
		}
		if l.W2, err = readQuantMatrix(r, dim, hidden); err != nil {
			return nil, err
		}
	}

	finalNorm, err := readFloats(r, dim)
	if err != nil {
		return nil, err
	}
	lmHead, err := readQuantMatrix(r, vocab, dim)
	if err != nil {
		return nil, err
	}

	return &Model{
		Config: cfg,
		Weights: Weights{
			TokenEmbed: tokenEmbed,
			PosEmbed:   posEmbed,
			Layers:     layers,
			FinalNorm:  finalNorm,
			LMHead:     lmHead,
		},
		Tokens: tokens,
	}, nil
}

func readTokenTable(r *bytes.Reader) (TokenMap, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return TokenMap{}, apperr.New(apperr.ModelAbsent, "truncated token table")
	}

	tokens := make([][]byte, count)
	for i := range tokens {
		var length uint8
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return TokenMap{}, apperr.New(apperr.ModelAbsent, "truncated token entry")
		}
		if length > maxTokenLen {
			return TokenMap{}, apperr.Newf(apperr.ModelAbsent, "token %d exceeds max length", i)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return TokenMap{}, apperr.New(apperr.ModelAbsent, "truncated token bytes")
		}
		tokens[i] = buf
	}
	return TokenMap{Tokens: tokens}, nil
}

func readQuantMatrix(r *bytes.Reader, rows, cols int) (QuantMatrix, error) {
	data := make([]int8, rows*cols)
	raw := make([]byte, rows*cols)
	if _, err := io.ReadFull(r, raw); err != nil {
		return QuantMatrix{}, apperr.New(apperr.ModelAbsent, "truncated weight block")
	}
	for i, b := range raw {
		data[i] = int8(b)
	}

	scale := make([]float32, rows)
	if err := binary.Read(r, binary.LittleEndian, &scale); err != nil {
		return QuantMatrix{}, apperr.New(apperr.ModelAbsent, "truncated scale block")
	}

	return QuantMatrix{Data: data, Scale: scale, Rows: rows, Cols: cols}, nil
}

func readFloats(r *bytes.Reader, n int) ([]float32, error) {
	out := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, &out); err != nil {
		return nil, apperr.New(apperr.ModelAbsent, "truncated norm weights")
	}
	return out, nil
}

// align4 skips forward to the next 4-byte boundary relative to the
// start of the file, matching the original's align4() before the weight
// section.
func align4(r *bytes.Reader) error {
	pos := int64(r.Size()) - int64(r.Len())
	pad := (4 - int(pos%4)) % 4
	if pad == 0 {
		return nil
	}
	skip := make([]byte, pad)
	if _, err := io.ReadFull(r, skip); err != nil {
		return apperr.New(apperr.ModelAbsent, "truncated alignment padding")
	}
	return nil
}

