//go:build !windows

package serial

import "os/exec"

// FindRuntime resolves a command name or path to an executable
func FindRuntime(runtime string) (string, error) {
	return exec.LookPath(runtime)
}
