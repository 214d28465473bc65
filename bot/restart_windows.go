//go:build windows

package bot

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Windows has no exec(2); start a new process and exit this one.
func (execRestarter) Restart() error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locating executable")
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "starting new process")
	}
	os.Exit(0)
	return nil
}
