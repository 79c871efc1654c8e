//go:build windows

package sudo

// Windows has no sudo-compatible escalation command.
const unsupportedHost = true
