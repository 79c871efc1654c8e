package runner

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/mensylisir/xmsudo/common"
	"github.com/mensylisir/xmsudo/logger"
)

type SSHConfig struct {
	Username    string
	Password    string
	Address     string
	Port        int
	PrivateKey  string
	KeyFile     string
	AgentSocket string
	Timeout     time.Duration
	Bastion     string
	BastionPort int
	BastionUser string
}

const socketEnvPrefix = "env:"

var _ Runner = (*SSHRunner)(nil)

// SSHRunner starts processes on a remote host, one SSH session per process.
type SSHRunner struct {
	mu     sync.Mutex
	client *ssh.Client
	// bastionClient carries the tunnel to client when a bastion is used.
	bastionClient *ssh.Client
	config        SSHConfig

	agentSocketConn net.Conn
}

func NewSSHRunner(cfg SSHConfig) (*SSHRunner, error) {
	var err error
	cfg, err = validateSSHConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to validate ssh connection parameters")
	}

	r := &SSHRunner{config: cfg}
	authMethods, err := r.authMethods()
	if err != nil {
		return nil, err
	}

	targetHost, targetPort, user := cfg.Address, cfg.Port, cfg.Username
	if cfg.Bastion != "" {
		targetHost, targetPort, user = cfg.Bastion, cfg.BastionPort, cfg.BastionUser
	}
	endpoint := net.JoinHostPort(targetHost, strconv.Itoa(targetPort))

	client, err := ssh.Dial("tcp", endpoint, &ssh.ClientConfig{
		User:            user,
		Timeout:         cfg.Timeout,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		r.cleanupAgentSocket()
		return nil, errors.Wrapf(err, "could not establish connection to %s", endpoint)
	}

	if cfg.Bastion != "" {
		behindBastion := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
		conn, dialErr := client.Dial("tcp", behindBastion)
		if dialErr != nil {
			_ = client.Close()
			r.cleanupAgentSocket()
			return nil, errors.Wrapf(dialErr, "could not establish connection to target %s via bastion", behindBastion)
		}
		ncc, chans, reqs, connErr := ssh.NewClientConn(conn, behindBastion, &ssh.ClientConfig{
			User:            cfg.Username,
			Timeout:         cfg.Timeout,
			Auth:            authMethods,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		})
		if connErr != nil {
			_ = conn.Close()
			_ = client.Close()
			r.cleanupAgentSocket()
			return nil, errors.Wrapf(connErr, "failed to create ssh client connection to %s via bastion", behindBastion)
		}
		r.bastionClient = client
		client = ssh.NewClient(ncc, chans, reqs)
	}

	r.client = client
	return r, nil
}

func (r *SSHRunner) authMethods() ([]ssh.AuthMethod, error) {
	cfg := r.config
	methods := make([]ssh.AuthMethod, 0, 3)

	if len(cfg.Password) > 0 {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, errors.Wrap(err, "the given SSH key could not be parsed")
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if len(cfg.AgentSocket) > 0 {
		addr := cfg.AgentSocket
		if strings.HasPrefix(addr, socketEnvPrefix) {
			envName := strings.TrimPrefix(addr, socketEnvPrefix)
			if envAddr := os.Getenv(envName); len(envAddr) > 0 {
				addr = envAddr
			} else {
				logger.Log.Warnf("SSH agent environment variable %s not set, using %s as socket path", envName, addr)
			}
		}

		conn, err := net.Dial("unix", addr)
		if err != nil {
			return nil, errors.Wrapf(err, "could not open SSH agent socket %q", addr)
		}
		signers, err := agent.NewClient(conn).Signers()
		if err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(err, "error when creating signer for SSH agent")
		}
		r.agentSocketConn = conn
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods, nil
}

func (r *SSHRunner) cleanupAgentSocket() {
	if r.agentSocketConn != nil {
		_ = r.agentSocketConn.Close()
		r.agentSocketConn = nil
	}
}

func validateSSHConfig(cfg SSHConfig) (SSHConfig, error) {
	if len(cfg.Username) == 0 {
		return cfg, errors.New("no username specified for SSH connection")
	}
	if len(cfg.Address) == 0 {
		return cfg, errors.New("no address specified for SSH connection")
	}
	if len(cfg.Password) == 0 && len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) == 0 && len(cfg.AgentSocket) == 0 {
		return cfg, errors.New("must specify at least one of password, private key, keyfile or agent socket")
	}

	if len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) > 0 {
		content, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read keyfile %q", cfg.KeyFile)
		}
		cfg.PrivateKey = string(content)
	}

	if cfg.Port <= 0 {
		cfg.Port = common.DefaultSSHPort
	}
	if cfg.Bastion != "" {
		if cfg.BastionPort <= 0 {
			cfg.BastionPort = common.DefaultSSHPort
		}
		if cfg.BastionUser == "" {
			cfg.BastionUser = cfg.Username
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}

func (r *SSHRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.client != nil {
		err = r.client.Close()
		r.client = nil
	}
	if r.bastionClient != nil {
		if berr := r.bastionClient.Close(); berr != nil && err == nil {
			err = berr
		}
		r.bastionClient = nil
	}
	r.cleanupAgentSocket()
	return err
}

func (r *SSHRunner) newSession(ctx context.Context) (*ssh.Session, error) {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()

	if client == nil {
		return nil, errors.New("ssh connection is closed or not initialized")
	}

	type result struct {
		sess *ssh.Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, e := client.NewSession()
		done <- result{s, e}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-done; res.sess != nil {
				_ = res.sess.Close()
			}
		}()
		return nil, errors.Wrap(ctx.Err(), "failed to create ssh session (context cancelled)")
	case res := <-done:
		if res.err != nil {
			return nil, errors.Wrap(res.err, "failed to create ssh session")
		}
		return res.sess, nil
	}
}

// Run starts args on the remote host. No PTY is requested, so the remote
// command reads its input from the session stdin.
func (r *SSHRunner) Run(ctx context.Context, env map[string]string, args []string) (Process, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	sess, err := r.newSession(ctx)
	if err != nil {
		return nil, err
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		return nil, errors.Wrap(err, "failed to get stdin pipe")
	}

	outR, outW := io.Pipe()
	sess.Stdout = outW
	sess.Stderr = outW

	cmdLine := ShellCommandLine(env, args)
	if err := sess.Start(cmdLine); err != nil {
		_ = sess.Close()
		_ = outW.Close()
		return nil, errors.Wrapf(err, "failed to start command: %s", cmdLine)
	}

	p := &sshProcess{sess: sess, stdout: outR, stdin: stdin}
	go func() {
		waitErr := sess.Wait()
		if _, ok := waitErr.(*ssh.ExitError); ok || waitErr == nil {
			_ = outW.Close()
			return
		}
		_ = outW.CloseWithError(waitErr)
	}()
	logger.Log.Debugf("Started remote process on %s: %s", r.config.Address, args[0])
	return p, nil
}

type sshProcess struct {
	sess   *ssh.Session
	stdout *io.PipeReader
	stdin  io.WriteCloser

	once    sync.Once
	termErr error
}

func (p *sshProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *sshProcess) Stdin() io.WriteCloser {
	return p.stdin
}

func (p *sshProcess) Terminate() error {
	p.once.Do(func() {
		_ = p.sess.Signal(ssh.SIGKILL)
		if err := p.sess.Close(); err != nil && err != io.EOF {
			p.termErr = errors.Wrap(err, "failed to close ssh session")
		}
		_ = p.stdout.Close()
	})
	return p.termErr
}

// ShellCommandLine renders args as a single POSIX shell command, quoting
// every word. A non-empty env is applied through env(1).
func ShellCommandLine(env map[string]string, args []string) string {
	words := make([]string, 0, len(env)+len(args)+1)
	if len(env) > 0 {
		words = append(words, "env")
		for _, key := range sortedKeys(env) {
			words = append(words, escapeShellArg(key+"="+env[key]))
		}
	}
	for _, a := range args {
		words = append(words, escapeShellArg(a))
	}
	return strings.Join(words, " ")
}

func escapeShellArg(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", "'\\''") + "'"
}
