package job

import "strings"

// State is what the scheduler reports for a job name: zero rows means the
// job is terminal (finished, failed, or never known — the scheduler does not
// distinguish, and neither do we), one or more rows means it is still queued
// or running.
//
// Observed lifecycle is Unknown -> Active -> Terminal, with Terminal
// absorbing: once the scheduler stops reporting rows for a name it never
// starts again.
type State struct {
	Rows []string `json:"rows,omitempty"` // raw status rows, scheduler order preserved
}

// Terminal reports whether the scheduler reported no rows for the job.
func (s State) Terminal() bool {
	return len(s.Rows) == 0
}

// ParseStatus turns raw scheduler status output into a State. The first
// non-empty line is the header squeue always emits; every later non-empty
// line is one queued or running task, kept verbatim and in original order.
// Zero or one non-empty lines means terminal. Queued rows are not told apart
// from running ones here: the only decision this core makes is terminal vs.
// active, finer granularity is the caller's presentation concern.
func ParseStatus(raw string) State {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) <= 1 {
		return State{}
	}
	return State{Rows: lines[1:]}
}
