//go:build !windows

package sudo

const unsupportedHost = false
