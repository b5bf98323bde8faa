// Package apperr carries the error taxonomy shared across the control
// plane so call sites can switch on a kind instead of matching strings.
package apperr

import "fmt"

// Kind enumerates the outcomes a caller might need to react to
// differently. It is not a type hierarchy, just a tag.
type Kind int

const (
	// ParseBound: parser produced zero notes or exceeded MAX_NOTES_PER_SONG.
	ParseBound Kind = iota
	// Allocation: scratch or track allocation failed.
	Allocation
	// MalformedCommand: a WebSocket frame did not match the command grammar.
	MalformedCommand
	// ModelAbsent: the model file is missing or its header is invalid.
	ModelAbsent
	// GenerationBusy: gen requested while a worker is already generating.
	GenerationBusy
	// LowMemory: free memory was below the generation threshold.
	LowMemory
	// Aborted: the abort flag was set during inference.
	Aborted
	// NetworkTransient: Wi-Fi is disconnected.
	NetworkTransient
)

func (k Kind) String() string {
	switch k {
	case ParseBound:
		return "parse_bound"
	case Allocation:
		return "allocation"
	case MalformedCommand:
		return "malformed_command"
	case ModelAbsent:
		return "model_absent"
	case GenerationBusy:
		return "generation_busy"
	case LowMemory:
		return "low_memory"
	case Aborted:
		return "aborted"
	case NetworkTransient:
		return "network_transient"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is lets errors.Is(err, apperr.ModelAbsent) read naturally by comparing
// against a bare Kind value wrapped in an Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err, if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	e, ok := err.(*Error)
	if !ok {
		return 0, false
	}
	return e.Kind, true
}
