package runner

import (
	"context"
	"io"
)

// Runner starts processes. It is the only boundary between the elevation
// driver and the operating system, so tests can substitute it freely.
type Runner interface {
	// Run starts args[0] with the remaining args as its arguments. env is
	// overlaid on the runner's base environment. The returned Process is
	// running; the caller owns it and must call Terminate.
	Run(ctx context.Context, env map[string]string, args []string) (Process, error)
}

// Process is a handle to a started process.
type Process interface {
	// Stdout returns the process output. Implementations merge stderr into
	// the same stream.
	Stdout() io.Reader

	// Stdin returns the process input. Callers that have nothing to send
	// must not call it.
	Stdin() io.WriteCloser

	// Terminate kills the process and releases its streams. It unblocks any
	// pending read on Stdout and any pending write on Stdin. Calling it more
	// than once is safe.
	Terminate() error
}
