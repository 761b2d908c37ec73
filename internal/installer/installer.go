// Package installer runs the spaCy language model install through the
// configured Python interpreter.
package installer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"datafetch/internal/logging"
)

// Installer shells out to "<python> -m spacy download <model>".
type Installer struct {
	python string
	model  string
}

// New creates an Installer for the given interpreter and model name.
func New(python, model string) *Installer {
	return &Installer{python: python, model: model}
}

// Install downloads and installs the language model package. It blocks until
// the subprocess exits; a non-zero exit is returned as an error with the
// output tail for diagnostics.
func (i *Installer) Install(ctx context.Context) error {
	logging.LogInstallStart(i.python, i.model)

	cmd := exec.CommandContext(ctx, i.python, "-m", "spacy", "download", i.model)
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := tailString(string(out), 512)
		if tail != "" {
			err = fmt.Errorf("spacy download %s: %w: %s", i.model, err, tail)
		} else {
			err = fmt.Errorf("spacy download %s: %w", i.model, err)
		}
		logging.LogInstallDone(i.model, err)
		return err
	}

	logging.LogInstallDone(i.model, nil)
	return nil
}

// tailString returns the last at most n bytes from s (by rune boundary best-effort).
func tailString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}
