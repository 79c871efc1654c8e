package cmd

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmsudo/common"
	"github.com/mensylisir/xmsudo/config"
	"github.com/mensylisir/xmsudo/runner"
	"github.com/mensylisir/xmsudo/sudo"
)

// newRunner builds the Runner for a target. Tests replace it.
var newRunner = func(cfg *config.ElevationConfig) (runner.Runner, func(), error) {
	target := cfg.Spec.Target
	switch common.TargetType(target.Type) {
	case common.TargetSSH:
		r, err := runner.NewSSHRunner(runner.SSHConfig{
			Username:    target.User,
			Password:    target.Password,
			Address:     target.Address,
			Port:        target.Port,
			KeyFile:     target.PrivateKeyPath,
			AgentSocket: target.AgentSocket,
			Timeout:     target.ConnectTimeout,
			Bastion:     target.Bastion,
			BastionPort: target.BastionPort,
			BastionUser: target.BastionUser,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return runner.NewLocalRunner(), func() {}, nil
	}
}

// loadConfig reads path, or starts from the defaults when path is empty,
// and applies timeout when it is set.
func loadConfig(path string, timeout time.Duration) (*config.ElevationConfig, error) {
	var cfg *config.ElevationConfig
	if path == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.NewLoader(path).Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if timeout != 0 {
		cfg.Spec.Timeout = timeout
	}
	config.SetDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func argumentBuilder(cfg *config.ElevationConfig) *sudo.ArgumentBuilder {
	b := sudo.NewArgumentBuilder()
	b.Command = cfg.Spec.Command
	b.PromptMarker = cfg.Spec.PromptMarker
	b.Probe = append([]string(nil), cfg.Spec.Probe...)
	if cfg.Spec.Platform.ForceUnsupported {
		b.Platform = sudo.PlatformFunc(func() bool { return true })
	} else if common.TargetType(cfg.Spec.Target.Type) == common.TargetSSH {
		// the remote host decides, not the binary running the client
		b.Platform = sudo.PlatformFunc(func() bool { return false })
	}
	return b
}

func exitCode(outcome sudo.Outcome) int {
	switch outcome {
	case sudo.Authenticated:
		return common.ExitAuthenticated
	case sudo.UnsupportedPlatform:
		return common.ExitUnsupported
	case sudo.WrongPassword, sudo.NoAccessGranted, sudo.TimedOut:
		return common.ExitDenied
	default:
		return common.ExitError
	}
}
