//go:build !windows

package bot

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

func (execRestarter) Restart() error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locating executable")
	}
	return errors.Wrap(syscall.Exec(exe, os.Args, os.Environ()), "exec")
}
