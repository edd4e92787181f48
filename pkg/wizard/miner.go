package wizard

import (
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// KillByName sends SIGTERM, then SIGKILL after a grace period, to every
// running process whose /proc/<pid>/comm matches name. This reimplements
// plotWizard.py's psutil-based "find creepMiner, kill it" step over /proc
// directly: no process-enumeration library appears anywhere in the
// dependency pack, so stdlib plus /proc is the only option (see
// DESIGN.md).
func KillByName(name string) error {

	entries, err := ioutil.ReadDir("/proc")
	if err != nil {
		return err
	}

	var matched []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := ioutil.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(comm)) == name {
			matched = append(matched, pid)
		}
	}

	for _, pid := range matched {
		syscall.Kill(pid, syscall.SIGTERM)
	}
	if len(matched) == 0 {
		return nil
	}

	time.Sleep(time.Second)

	for _, pid := range matched {
		if processAlive(pid) {
			syscall.Kill(pid, syscall.SIGKILL)
		}
	}

	return nil
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil
}

// RestartMiner kills any running instance of processName, then spawns
// minerPathName fresh. processName defaults to minerPathName's own
// basename when the caller hasn't configured one explicitly — generalized
// from the original's hardcoded "creepMiner" per SPEC_FULL's feature
// recovery notes.
func RestartMiner(minerPathName, processName string, log *ProcLog) error {

	if processName == "" {
		processName = filepath.Base(minerPathName)
	}

	if err := KillByName(processName); err != nil {
		return err
	}

	return runSubprocess(minerPathName, nil, filepath.Dir(minerPathName), log)
}
