package sudo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmsudo/common"
	"github.com/mensylisir/xmsudo/logger"
	"github.com/mensylisir/xmsudo/runner"
)

const (
	DefaultTimeout = 30 * time.Second
	readChunkSize  = 1024
)

// Authenticator checks a password by running the escalation command with a
// probe and watching its output. It holds no per-attempt state and is safe
// for concurrent use; every attempt starts its own process.
type Authenticator struct {
	runner  runner.Runner
	builder *ArgumentBuilder
	success string
	env     map[string]string
	timeout time.Duration
	target  string
}

type Option func(*Authenticator)

func WithBuilder(b *ArgumentBuilder) Option {
	return func(a *Authenticator) { a.builder = b }
}

func WithSuccessMarker(marker string) Option {
	return func(a *Authenticator) { a.success = marker }
}

// WithEnvironment sets variables overlaid on the runner environment.
func WithEnvironment(env map[string]string) Option {
	return func(a *Authenticator) { a.env = env }
}

// WithTimeout bounds each attempt. Zero or negative leaves only the caller
// context.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) { a.timeout = d }
}

// WithTarget names the elevation target in log entries.
func WithTarget(name string) Option {
	return func(a *Authenticator) { a.target = name }
}

func NewAuthenticator(r runner.Runner, opts ...Option) *Authenticator {
	a := &Authenticator{
		runner:  r,
		builder: NewArgumentBuilder(),
		success: SuccessMarker,
		timeout: DefaultTimeout,
		target:  common.LocalHostname,
	}
	for _, opt := range opts {
		opt(a)
	}
	// the caller's builder is never modified
	if a.builder == nil {
		a.builder = NewArgumentBuilder()
	} else {
		b := *a.builder
		b.Probe = append([]string(nil), a.builder.Probe...)
		a.builder = &b
	}
	if a.builder.PromptMarker == "" {
		a.builder.PromptMarker = PromptMarker
	}
	if a.success == "" {
		a.success = SuccessMarker
	}
	return a
}

// Authenticate reports whether secret elevates privileges. A nil or empty
// secret checks for cached or passwordless access. The caller hands secret
// over: it is zeroed before Authenticate returns.
//
// false covers an unsupported platform, a rejected password, missing
// access and an expired timeout; use Attempt to tell them apart. err is an
// *IOError when the process could not be started or its streams failed.
func (a *Authenticator) Authenticate(ctx context.Context, secret []byte) (bool, error) {
	outcome, err := a.Attempt(ctx, secret)
	return outcome == Authenticated, err
}

// Attempt is Authenticate with the detailed outcome.
func (a *Authenticator) Attempt(ctx context.Context, secret []byte) (Outcome, error) {
	args := a.builder.CommandLine(secret)
	attemptID := uuid.NewString()
	if len(args) == 0 {
		wipe(secret)
		logger.Log.DebugTarget(a.target, "Elevation is not supported on this platform",
			logrus.Fields{common.AttemptID: attemptID})
		return UnsupportedPlatform, nil
	}
	log := logger.Log.ForAttempt(a.target, attemptID, args[0])

	var attemptCtx context.Context
	var cancel context.CancelFunc
	if a.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, a.timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	log.Debugf("Starting elevation probe: %s", strings.Join(args, " "))
	proc, err := a.runner.Run(attemptCtx, a.env, args)
	if err != nil {
		wipe(secret)
		logger.Log.WarnTarget(a.target, "Failed to start elevation command", logrus.Fields{
			common.AttemptID:   attemptID,
			common.CommandName: args[0],
			logrus.ErrorKey:    err,
		})
		return Undetermined, &IOError{Op: "start", Err: err}
	}

	at := &attempt{
		proc:    proc,
		secret:  secret,
		scanner: newStreamScanner(a.builder.PromptMarker, a.success),
		log:     log,
	}
	defer at.finish()

	results := make(chan scanResult, 1)
	go func() {
		outcome, err := at.scan()
		results <- scanResult{outcome: outcome, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			log.WithError(res.err).Warn("Elevation attempt failed")
		} else {
			log.Debugf("Elevation attempt finished: %s", res.outcome)
		}
		return res.outcome, res.err
	case <-attemptCtx.Done():
		// killing the process unblocks the reader
		at.terminate()
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Debug("Elevation attempt cancelled by caller")
			return Undetermined, &IOError{Op: "wait", Err: errors.Wrap(ctxErr, "elevation attempt cancelled")}
		}
		logger.Log.WarnTarget(a.target, fmt.Sprintf("Elevation attempt timed out after %s", a.timeout), logrus.Fields{
			common.AttemptID:   attemptID,
			common.CommandName: args[0],
		})
		return TimedOut, nil
	}
}

type scanResult struct {
	outcome Outcome
	err     error
}

// attempt is the state of one authentication run.
type attempt struct {
	proc    runner.Process
	scanner *streamScanner
	log     *logrus.Entry

	// mu guards secret and finished; the reader answers the prompt under it.
	mu       sync.Mutex
	secret   []byte
	finished bool

	termOnce sync.Once
}

func (at *attempt) scan() (Outcome, error) {
	out := at.proc.Stdout()
	chunk := make([]byte, readChunkSize)
	for {
		n, rerr := out.Read(chunk)
		if n > 0 {
			answer, outcome, decided := at.scanner.feed(chunk[:n])
			if answer {
				if err := at.answer(); err != nil {
					return Undetermined, err
				}
			}
			if decided {
				return outcome, nil
			}
		}
		if rerr == io.EOF {
			return NoAccessGranted, nil
		}
		if rerr != nil {
			return Undetermined, &IOError{Op: "read", Err: errors.Wrap(rerr, "failed to read elevation command output")}
		}
	}
}

// answer writes the secret and a newline to stdin, then closes stdin so the
// command sees EOF after its single line. Without a secret stdin is left
// untouched.
func (at *attempt) answer() error {
	at.mu.Lock()
	defer at.mu.Unlock()
	if at.finished || len(at.secret) == 0 {
		return nil
	}

	line := make([]byte, len(at.secret)+1)
	copy(line, at.secret)
	line[len(at.secret)] = '\n'
	defer wipe(line)

	stdin := at.proc.Stdin()
	if _, err := stdin.Write(line); err != nil {
		_ = stdin.Close()
		return &IOError{Op: "write", Err: errors.Wrap(err, "failed to write password to elevation command")}
	}
	if err := stdin.Close(); err != nil {
		return &IOError{Op: "write", Err: errors.Wrap(err, "failed to close elevation command input")}
	}
	at.log.Debug("Password prompt answered")
	return nil
}

func (at *attempt) terminate() {
	at.termOnce.Do(func() {
		if err := at.proc.Terminate(); err != nil {
			at.log.WithError(err).Debug("Failed to terminate elevation command")
		}
	})
}

// finish terminates the process and wipes the secret. It runs on every
// path after the process started.
func (at *attempt) finish() {
	at.terminate()
	at.mu.Lock()
	at.finished = true
	wipe(at.secret)
	at.mu.Unlock()
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
