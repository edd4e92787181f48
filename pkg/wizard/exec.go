package wizard

import (
	"fmt"
	"os/exec"
	"syscall"

	"github.com/mattn/go-shellwords"
)

// ErrExternal wraps a nonzero subprocess exit, fatal to the wizard per §7.
type ErrExternal struct {
	Cmd      string
	ExitCode int
}

func (e *ErrExternal) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Cmd, e.ExitCode)
}

// runSubprocess parses pathAndArgs with shellwords (so a configured
// plotter/miner path carrying its own baked-in flags still splits
// correctly), appends extraArgs, runs it in its own process group, and
// streams combined stdout/stderr into log. It waits for the subprocess to
// exit. Orchestrator.Cancel does not signal that process group, so a
// running subprocess is left to finish.
func runSubprocess(pathAndArgs string, extraArgs []string, dir string, log *ProcLog) error {

	parts, err := shellwords.Parse(pathAndArgs)
	if err != nil {
		return fmt.Errorf("invalid command %q: %w", pathAndArgs, err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("empty command")
	}

	args := append(append([]string{}, parts[1:]...), extraArgs...)
	cmd := exec.Command(parts[0], args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = log
	cmd.Stderr = log

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ErrExternal{Cmd: parts[0], ExitCode: exitErr.ExitCode()}
		}
		return err
	}

	return nil
}
