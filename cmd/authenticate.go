package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mensylisir/xmsudo/common"
	"github.com/mensylisir/xmsudo/logger"
	"github.com/mensylisir/xmsudo/sudo"
)

type authenticateOptions struct {
	configPath    string
	passwordStdin bool
	noPassword    bool
	timeout       time.Duration
	verbose       bool
}

// readTerminalPassword prompts on stderr and reads without echo.
var readTerminalPassword = func(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal, use --password-stdin or --no-password")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	secret, err := term.ReadPassword(fd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read password from terminal")
	}
	return secret, nil
}

func newAuthenticateCmd() *cobra.Command {
	o := &authenticateOptions{}
	c := &cobra.Command{
		Use:   "authenticate",
		Short: "Check whether a password grants sudo",
		Long: "Runs the probe under sudo with the given password and reports the outcome.\n" +
			"Exit codes: 0 authenticated, 1 denied or timed out, 2 unsupported platform, 3 error.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd)
		},
	}
	c.Flags().StringVarP(&o.configPath, "config", "f", "", "Path to an Elevation config file")
	c.Flags().BoolVar(&o.passwordStdin, "password-stdin", false, "Read the password from the first line of stdin")
	c.Flags().BoolVar(&o.noPassword, "no-password", false, "Check for cached or passwordless sudo without a password")
	c.Flags().DurationVar(&o.timeout, "timeout", 0, "Overall attempt timeout (default from config, 30s)")
	c.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	c.MarkFlagsMutuallyExclusive("password-stdin", "no-password")
	return c
}

func (o *authenticateOptions) run(cmd *cobra.Command) error {
	cfg, err := loadConfig(o.configPath, o.timeout)
	if err != nil {
		return &exitError{code: common.ExitError, err: err}
	}
	verbose := o.verbose || cfg.Spec.Log.Verbose
	if err := logger.InitGlobalLogger(cfg.Spec.Log.Dir, verbose, cfg.LogLevel()); err != nil {
		return &exitError{code: common.ExitError, err: err}
	}
	source := o.configPath
	if source == "" {
		source = "defaults"
	}
	logger.Log.DebugTarget(cfg.Metadata.Name, "Loaded configuration", logrus.Fields{
		"Source":  source,
		"Timeout": cfg.Spec.Timeout.String(),
	})

	var secret []byte
	switch {
	case o.noPassword:
	case o.passwordStdin:
		secret, err = readSecretLine(cmd.InOrStdin())
	default:
		secret, err = readTerminalPassword(fmt.Sprintf("[%s] password for %s: ", common.AppName, cfg.Metadata.Name))
	}
	if err != nil {
		return &exitError{code: common.ExitError, err: err}
	}

	r, closeRunner, err := newRunner(cfg)
	if err != nil {
		wipe(secret)
		logger.Log.ErrorTarget(cfg.Metadata.Name, err, "Failed to connect to target")
		return &exitError{code: common.ExitError, err: err}
	}
	defer closeRunner()

	a := sudo.NewAuthenticator(r,
		sudo.WithBuilder(argumentBuilder(cfg)),
		sudo.WithSuccessMarker(cfg.Spec.SuccessMarker),
		sudo.WithEnvironment(cfg.Spec.Environment),
		sudo.WithTimeout(cfg.Spec.Timeout),
		sudo.WithTarget(cfg.Metadata.Name),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	outcome, err := a.Attempt(ctx, secret)
	if err != nil {
		logger.Log.ErrorTarget(cfg.Metadata.Name, err, "Elevation attempt failed")
		return &exitError{code: common.ExitError, err: err}
	}
	logger.Log.InfoTarget(cfg.Metadata.Name, "Elevation attempt finished: "+outcome.String())
	fmt.Fprintln(cmd.OutOrStdout(), outcome)

	if code := exitCode(outcome); code != common.ExitAuthenticated {
		return &exitError{code: code}
	}
	return nil
}

// readSecretLine reads up to the first newline. A trailing carriage return
// is dropped.
func readSecretLine(in io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(in).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to read password from stdin")
	}
	secret := bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))
	if len(secret) == 0 {
		return nil, errors.New("no password on stdin, use --no-password to check without one")
	}
	return secret, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
