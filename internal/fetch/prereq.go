package fetch

import (
	"fmt"
	"os/exec"
	"strings"

	"datafetch/internal/logging"
)

// CheckPrerequisites ensures the external tools the run depends on resolve
// on PATH before any directory or network side effect happens. The Python
// interpreter is additionally probed for a working pip module, which the
// final model install step shells out to. Downloading and extraction are
// built in, so only Python is external.
func CheckPrerequisites(python string) error {
	path, err := exec.LookPath(python)
	logging.LogPrereqCheck(python, path, err)
	if err != nil {
		return fmt.Errorf("required tool %q not found in PATH: %w", python, err)
	}

	// Ensure pip is importable by this interpreter; the install step runs
	// through "<python> -m". A bare interpreter without pip would let the
	// run proceed and fail at the very end.
	out, err := exec.Command(path, "-m", "pip", "--version").CombinedOutput()
	if err != nil {
		tail := strings.TrimSpace(string(out))
		if tail != "" {
			return fmt.Errorf("%s -m pip not runnable: %w: %s", python, err, tail)
		}
		return fmt.Errorf("%s -m pip not runnable: %w", python, err)
	}
	return nil
}
