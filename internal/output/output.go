// Package output collects per-node console output files from a job's
// working directory.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName returns the output file name for a node index, as written by the
// submission tooling: slurm_0.out, slurm_1.out, ...
func FileName(node int) string {
	return fmt.Sprintf("slurm_%d.out", node)
}

// Entry is the collected output of a single node.
type Entry struct {
	Node    int    `json:"node"`
	Content string `json:"content,omitempty"`
	Missing bool   `json:"missing,omitempty"` // file did not exist; a valid outcome, not an error
	Error   string `json:"error,omitempty"`   // read failure other than not-found
}

// Report holds one entry per node index, ordered by index.
type Report struct {
	Entries []Entry `json:"entries"`
}

// Collect reads each node's output file from dir. Missing files are marked
// per entry rather than failing; so are read errors, which never abort the
// remaining nodes. The result always has exactly nodeCount entries. Collect
// never waits for files to appear: callers decide when the job is done.
func Collect(dir string, nodeCount int) Report {
	entries := make([]Entry, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		entry := Entry{Node: i}
		data, err := os.ReadFile(filepath.Join(dir, FileName(i)))
		switch {
		case err == nil:
			entry.Content = string(data)
		case os.IsNotExist(err):
			entry.Missing = true
		default:
			entry.Error = err.Error()
		}
		entries = append(entries, entry)
	}
	return Report{Entries: entries}
}

// Render formats the report for terminal display, one labelled section per
// node.
func (r Report) Render() string {
	var b strings.Builder
	for i, e := range r.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "=== node %d (%s) ===\n", e.Node, FileName(e.Node))
		switch {
		case e.Missing:
			b.WriteString("(no output file)\n")
		case e.Error != "":
			fmt.Fprintf(&b, "(read error: %s)\n", e.Error)
		default:
			b.WriteString(e.Content)
			if e.Content != "" && !strings.HasSuffix(e.Content, "\n") {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// Summary returns per-node availability counts for event payloads.
func (r Report) Summary() (found, missing, failed int) {
	for _, e := range r.Entries {
		switch {
		case e.Missing:
			missing++
		case e.Error != "":
			failed++
		default:
			found++
		}
	}
	return found, missing, failed
}
