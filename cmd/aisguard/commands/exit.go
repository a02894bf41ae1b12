package commands

import (
	"strings"

	"github.com/teranos/aisguard/errors"
)

// Process exit codes
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitDegraded = 2 // results written, but a stage timed out, failed or skipped a table
)

// ErrDegraded is returned by run and check when output was produced from a
// degraded pipeline
var ErrDegraded = errors.New("run degraded")

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrDegraded):
		return ExitDegraded
	default:
		return ExitFatal
	}
}

// Describe renders err with its hints for the terminal
func Describe(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())
	for _, hint := range errors.GetAllHints(err) {
		b.WriteString("\n  hint: ")
		b.WriteString(hint)
	}
	return b.String()
}
