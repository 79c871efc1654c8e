package sudo

// Platform reports whether the host can elevate through the escalation
// command at all.
type Platform interface {
	IsUnsupported() bool
}

// PlatformFunc adapts a function to Platform.
type PlatformFunc func() bool

func (f PlatformFunc) IsUnsupported() bool {
	return f()
}

type hostPlatform struct{}

func (hostPlatform) IsUnsupported() bool {
	return unsupportedHost
}

// HostPlatform returns the Platform of the running binary.
func HostPlatform() Platform {
	return hostPlatform{}
}
