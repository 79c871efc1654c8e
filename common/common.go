package common

const (
	AppName = "xmsudo"
	Version = "0.1.0"
)

// Log field keys. The logger formatter prints them in this order.
const (
	TargetName  = "Target"
	CommandName = "Command"
	AttemptID   = "Attempt"
)

const (
	LocalHostname  = "LocalHost"
	DefaultSSHPort = 22
)

// Process exit codes of the CLI, one per authentication outcome.
const (
	ExitAuthenticated = 0
	ExitDenied        = 1
	ExitUnsupported   = 2
	ExitError         = 3
)

type TargetType string

const (
	TargetLocal TargetType = "local"
	TargetSSH   TargetType = "ssh"
)
