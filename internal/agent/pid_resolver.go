package agent

import (
	"strings"

	"github.com/shirou/gopsutil/process"
)

// findWorkerPID scans the OS process table for a process whose executable
// matches the worker runtime and whose command line carries the account
// identifier. First match wins. The spawn handle is an intermediary, so this
// is the only way to learn the worker's true identity.
func findWorkerPID(username, exeName string) (int, bool) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false
	}
	exeName = strings.ToLower(exeName)
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !strings.Contains(strings.ToLower(name), exeName) {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil {
			continue
		}
		if strings.Contains(cmdline, username) {
			return int(p.Pid), true
		}
	}
	return 0, false
}
