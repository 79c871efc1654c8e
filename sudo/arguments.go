package sudo

const (
	DefaultCommand = "sudo"
	// PromptMarker is passed to sudo with -p and searched for in its output.
	PromptMarker = "password:"
	// SuccessMarker is printed by the probe once elevation succeeded.
	SuccessMarker = "SUCCESS"
)

// DefaultProbe is the command run under elevation. It does nothing but
// print SuccessMarker.
var DefaultProbe = []string{"echo", SuccessMarker}

// ArgumentBuilder decides the escalation command line for an attempt.
type ArgumentBuilder struct {
	Command      string
	PromptMarker string
	Probe        []string
	Platform     Platform
}

func NewArgumentBuilder() *ArgumentBuilder {
	return &ArgumentBuilder{
		Command:      DefaultCommand,
		PromptMarker: PromptMarker,
		Probe:        append([]string(nil), DefaultProbe...),
		Platform:     HostPlatform(),
	}
}

// Arguments returns the escalation flags for secret, without the command
// name and probe.
//
// Without a secret the cached credentials are dropped and sudo must not
// prompt: -k -n --. With a secret it reads the password from stdin after
// printing PromptMarker: -k -S -p <marker> --. On an unsupported platform
// the result is empty.
func (b *ArgumentBuilder) Arguments(secret []byte) []string {
	if b.unsupported() {
		return []string{}
	}
	if len(secret) == 0 {
		return []string{"-k", "-n", "--"}
	}
	return []string{"-k", "-S", "-p", b.PromptMarker, "--"}
}

// CommandLine returns the full argv: command, flags and probe. It is empty
// when the platform is unsupported, and callers must not start anything.
func (b *ArgumentBuilder) CommandLine(secret []byte) []string {
	flags := b.Arguments(secret)
	if len(flags) == 0 {
		return []string{}
	}
	line := make([]string, 0, 1+len(flags)+len(b.Probe))
	line = append(line, b.Command)
	line = append(line, flags...)
	return append(line, b.Probe...)
}

func (b *ArgumentBuilder) unsupported() bool {
	return b.Platform != nil && b.Platform.IsUnsupported()
}
