package config

import (
	"time"
)

const (
	APIVersion = "xmsudo/v1"
	Kind       = "Elevation"
)

// ElevationConfig is the top-level configuration structure.
type ElevationConfig struct {
	APIVersion string        `yaml:"apiVersion"`
	Kind       string        `yaml:"kind"`
	Metadata   MetadataSpec  `yaml:"metadata"`
	Spec       ElevationSpec `yaml:"spec"`
}

// MetadataSpec names the elevation target in logs.
type MetadataSpec struct {
	Name string `yaml:"name"`
}

// ElevationSpec describes how an authentication attempt is run.
type ElevationSpec struct {
	Command       string            `yaml:"command,omitempty"`
	PromptMarker  string            `yaml:"promptMarker,omitempty"`
	SuccessMarker string            `yaml:"successMarker,omitempty"`
	Probe         []string          `yaml:"probe,omitempty"` // run under elevation, must print successMarker
	Timeout       time.Duration     `yaml:"timeout,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Platform      PlatformSpec      `yaml:"platform,omitempty"`
	Target        TargetSpec        `yaml:"target"`
	Log           LogSpec           `yaml:"log,omitempty"`
}

type PlatformSpec struct {
	ForceUnsupported bool `yaml:"forceUnsupported,omitempty"`
}

// TargetSpec selects where the escalation command runs. Only Type is read
// for a local target.
type TargetSpec struct {
	Type           string        `yaml:"type"` // "local" or "ssh"
	Address        string        `yaml:"address,omitempty"`
	Port           int           `yaml:"port,omitempty"`
	User           string        `yaml:"user,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	PrivateKeyPath string        `yaml:"privateKeyPath,omitempty"`
	AgentSocket    string        `yaml:"agentSocket,omitempty"` // "env:SSH_AUTH_SOCK" reads the path from the environment
	Bastion        string        `yaml:"bastion,omitempty"`
	BastionPort    int           `yaml:"bastionPort,omitempty"`
	BastionUser    string        `yaml:"bastionUser,omitempty"`
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty"`
}

type LogSpec struct {
	Dir     string `yaml:"dir,omitempty"` // empty logs to the console
	Verbose bool   `yaml:"verbose,omitempty"`
	Level   string `yaml:"level,omitempty"`
}
