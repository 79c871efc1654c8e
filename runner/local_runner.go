package runner

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmsudo/logger"
)

// localRunner implements Runner for processes on the local machine.
type localRunner struct {
	baseEnv func() []string
}

// NewLocalRunner creates a Runner that starts local processes. The child
// inherits the current environment.
func NewLocalRunner() Runner {
	return &localRunner{baseEnv: os.Environ}
}

func (l *localRunner) Run(ctx context.Context, env map[string]string, args []string) (Process, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = MergeEnv(l.baseEnv(), env)

	// stdout and stderr share one pipe: sudo -S writes its prompt to stderr
	// while the probe writes to stdout.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output pipe")
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, errors.Wrap(err, "failed to create stdin pipe")
	}

	if err := cmd.Start(); err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, errors.Wrapf(err, "failed to start command '%s'", strings.Join(args, " "))
	}
	// the child holds its own copy of the write end
	_ = outW.Close()

	p := &localProcess{
		cmd:      cmd,
		stdout:   outR,
		stdin:    stdin,
		waitDone: make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitDone)
	}()
	logger.Log.Debugf("Started local process %d: %s", cmd.Process.Pid, args[0])
	return p, nil
}

type localProcess struct {
	cmd    *exec.Cmd
	stdout *os.File
	stdin  io.WriteCloser

	waitDone chan struct{}
	waitErr  error

	once    sync.Once
	termErr error
}

func (p *localProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *localProcess) Stdin() io.WriteCloser {
	return p.stdin
}

func (p *localProcess) Terminate() error {
	p.once.Do(func() {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.termErr = errors.Wrapf(err, "failed to kill process %d", p.cmd.Process.Pid)
		}
		<-p.waitDone
		if cerr := p.stdout.Close(); cerr != nil && p.termErr == nil {
			p.termErr = errors.Wrap(cerr, "failed to close process output")
		}
		logger.Log.Debugf("Local process %d terminated (wait: %v)", p.cmd.Process.Pid, p.waitErr)
	})
	return p.termErr
}

// MergeEnv overlays overrides on base, a list of KEY=VALUE entries. Keys
// present in overrides replace the base entry. The result keeps base order
// and appends new keys sorted.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if _, ok := overrides[key]; ok {
			continue
		}
		merged = append(merged, kv)
	}
	for _, key := range sortedKeys(overrides) {
		merged = append(merged, key+"="+overrides[key])
	}
	return merged
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
