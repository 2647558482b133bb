// Package engine drives a line-oriented parse state machine over a log file,
// either as a one-shot read to end of file or as a tail that follows the
// file while it grows. The machine decides what lines mean; the engine owns
// the byte offset, the session identity and observer delivery.
package engine

import (
	"github.com/theirongolddev/plotlog/internal/model"
	"github.com/theirongolddev/plotlog/internal/source"
)

// Emit delivers one event to the parser's observers.
type Emit func(model.Event)

// Machine is the per-format parse state. All methods are called from a
// single goroutine at a time.
type Machine[T any] interface {
	// Begin resets all parse state for a fresh session over the file.
	Begin(meta source.FileMeta)
	// Resume refreshes file metadata when reading continues an existing session.
	Resume(meta source.FileMeta)
	// Consume processes one line (without terminator). A returned error
	// ends the session.
	Consume(line string, emit Emit) error
	// Flush is called after each batch of lines.
	Flush(emit Emit)
	// Finished reports whether the log reached its terminal state.
	Finished() bool
	// Fail moves the machine into its absorbing error state.
	Fail(err error)
	// Result returns the value a one-shot read resolves with. It is read
	// before the batch is flushed.
	Result() T
}
