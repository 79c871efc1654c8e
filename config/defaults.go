package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmsudo/common"
)

const (
	DefaultCommand       = "sudo"
	DefaultPromptMarker  = "password:"
	DefaultSuccessMarker = "SUCCESS"
	DefaultTimeout       = 30 * time.Second
	DefaultLogLevel      = "info"
	DefaultName          = common.LocalHostname
)

// Default returns a fully defaulted configuration for the local host.
func Default() *ElevationConfig {
	cfg := &ElevationConfig{
		APIVersion: APIVersion,
		Kind:       Kind,
		Metadata:   MetadataSpec{Name: DefaultName},
	}
	SetDefaults(cfg)
	return cfg
}

// SetDefaults fills every unset field in place.
func SetDefaults(cfg *ElevationConfig) {
	if cfg.Metadata.Name == "" {
		cfg.Metadata.Name = DefaultName
	}
	spec := &cfg.Spec
	if spec.Command == "" {
		spec.Command = DefaultCommand
	}
	if spec.PromptMarker == "" {
		spec.PromptMarker = DefaultPromptMarker
	}
	if spec.SuccessMarker == "" {
		spec.SuccessMarker = DefaultSuccessMarker
	}
	if len(spec.Probe) == 0 {
		spec.Probe = []string{"echo", spec.SuccessMarker}
	}
	if spec.Timeout == 0 {
		spec.Timeout = DefaultTimeout
	}
	if spec.Target.Type == "" {
		spec.Target.Type = string(common.TargetLocal)
	}
	if spec.Target.Type == string(common.TargetSSH) {
		if spec.Target.Port == 0 {
			spec.Target.Port = common.DefaultSSHPort
		}
		if spec.Target.Bastion != "" {
			if spec.Target.BastionPort == 0 {
				spec.Target.BastionPort = common.DefaultSSHPort
			}
			if spec.Target.BastionUser == "" {
				spec.Target.BastionUser = spec.Target.User
			}
		}
	}
	if spec.Log.Level == "" {
		spec.Log.Level = DefaultLogLevel
	}
}

// Validate checks a defaulted configuration.
func Validate(cfg *ElevationConfig) error {
	spec := cfg.Spec
	if strings.TrimSpace(spec.Command) == "" {
		return errors.New("spec.command must not be empty")
	}
	if spec.PromptMarker == "" {
		return errors.New("spec.promptMarker must not be empty")
	}
	if spec.SuccessMarker == "" {
		return errors.New("spec.successMarker must not be empty")
	}
	if len(spec.Probe) == 0 {
		return errors.New("spec.probe must not be empty")
	}
	if !strings.Contains(strings.Join(spec.Probe[1:], " "), spec.SuccessMarker) {
		return errors.Errorf("spec.probe %q must print the success marker %q", spec.Probe, spec.SuccessMarker)
	}
	if strings.Contains(spec.SuccessMarker, spec.PromptMarker) {
		return errors.Errorf("spec.successMarker %q must not contain the prompt marker %q", spec.SuccessMarker, spec.PromptMarker)
	}
	if spec.Timeout <= 0 {
		return errors.Errorf("spec.timeout must be positive, got %s", spec.Timeout)
	}
	if _, err := logrus.ParseLevel(spec.Log.Level); err != nil {
		return errors.Wrap(err, "invalid spec.log.level")
	}

	switch common.TargetType(spec.Target.Type) {
	case common.TargetLocal:
	case common.TargetSSH:
		t := spec.Target
		if t.Address == "" {
			return errors.New("spec.target.address is required for an ssh target")
		}
		if t.User == "" {
			return errors.New("spec.target.user is required for an ssh target")
		}
		if t.Password == "" && t.PrivateKeyPath == "" && t.AgentSocket == "" {
			return errors.New("spec.target needs one of password, privateKeyPath or agentSocket for an ssh target")
		}
		if t.Port < 0 || t.Port > 65535 {
			return errors.Errorf("spec.target.port %d is out of range", t.Port)
		}
	default:
		return errors.Errorf("unsupported spec.target.type '%s', must be '%s' or '%s'", spec.Target.Type, common.TargetLocal, common.TargetSSH)
	}
	return nil
}

// LogLevel returns the parsed log level, falling back to info.
func (c *ElevationConfig) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Spec.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
