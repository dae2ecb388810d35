package resque

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Identity is the "host:pid:queue,queue" key that uniquely names a
// worker process in the registry. It is stable for the life of the
// worker — see spec.md §3.
type Identity struct {
	Host   string
	PID    int
	Queues []string
}

// String renders the identity back to its canonical wire form.
func (id Identity) String() string {
	return fmt.Sprintf("%s:%d:%s", id.Host, id.PID, strings.Join(id.Queues, ","))
}

// ParseIdentity parses "host:pid:queue,queue,...". Only the first two
// colons are significant — everything after the second colon is the
// (possibly colon-containing) queue list, matching the original Ruby
// Resque's split(':', 3) semantics.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("resque: malformed worker id %q", s)
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Identity{}, fmt.Errorf("resque: malformed worker id %q: bad pid: %w", s, err)
	}
	var queues []string
	if parts[2] != "" {
		queues = strings.Split(parts[2], ",")
	}
	return Identity{Host: parts[0], PID: pid, Queues: queues}, nil
}

// newIdentity builds this process's own identity, honoring Config.Hostname
// as an override for environments with inconsistent hostname reporting
// (spec.md §9's open question about pruneDeadWorkers hostname comparison).
func newIdentity(hostOverride string, queues []string) (Identity, error) {
	host := hostOverride
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return Identity{}, fmt.Errorf("resque: cannot determine hostname: %w", err)
		}
		host = h
	}
	return Identity{Host: host, PID: os.Getpid(), Queues: queues}, nil
}
