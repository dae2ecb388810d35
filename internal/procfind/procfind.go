// Package procfind abstracts "list pids belonging to this host" behind a
// cross-platform call, replacing the ps/WMIC shell-outs the original
// Ruby/PHP Resque implementations use for dead-worker detection (see
// spec.md §4.E, §9). It is backed by gopsutil/v4/process, the same module
// the teacher repo already depends on for its heartbeat system metrics.
package procfind

import (
	"github.com/shirou/gopsutil/v4/process"
)

// LivePIDs returns the set of process ids currently running on this host.
func LivePIDs() (map[int]struct{}, error) {
	pids, err := process.Pids()
	if err != nil {
		return nil, err
	}
	live := make(map[int]struct{}, len(pids))
	for _, pid := range pids {
		live[int(pid)] = struct{}{}
	}
	return live, nil
}

// IsAlive reports whether pid is currently running on this host.
func IsAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return alive
}
