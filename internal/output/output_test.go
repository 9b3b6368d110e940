package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCollectPartialFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "slurm_0.out", "a")
	writeFile(t, dir, "slurm_2.out", "c")

	report := Collect(dir, 3)

	if len(report.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(report.Entries))
	}
	if report.Entries[0].Content != "a" || report.Entries[0].Missing {
		t.Errorf("unexpected entry 0: %+v", report.Entries[0])
	}
	if !report.Entries[1].Missing {
		t.Errorf("expected entry 1 to be missing, got %+v", report.Entries[1])
	}
	if report.Entries[2].Content != "c" {
		t.Errorf("unexpected entry 2: %+v", report.Entries[2])
	}
}

func TestCollectAlwaysReturnsNodeCountEntries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for _, n := range []int{1, 4, 16} {
		report := Collect(dir, n)
		if len(report.Entries) != n {
			t.Errorf("nodeCount=%d: expected %d entries, got %d", n, n, len(report.Entries))
		}
		for i, e := range report.Entries {
			if e.Node != i {
				t.Errorf("nodeCount=%d: entry %d has node index %d", n, i, e.Node)
			}
			if !e.Missing {
				t.Errorf("nodeCount=%d: entry %d should be missing in empty dir", n, i)
			}
		}
	}
}

func TestCollectRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := "line one\nline two\nno trailing newline"
	writeFile(t, dir, "slurm_0.out", content)

	report := Collect(dir, 1)
	if report.Entries[0].Content != content {
		t.Errorf("content not preserved verbatim: %q", report.Entries[0].Content)
	}
}

func TestCollectReadErrorDoesNotAbort(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// A directory where a file is expected produces a read error, not a panic.
	if err := os.Mkdir(filepath.Join(dir, "slurm_0.out"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "slurm_1.out", "ok")

	report := Collect(dir, 2)
	if report.Entries[0].Error == "" {
		t.Error("expected a read error for node 0")
	}
	if report.Entries[1].Content != "ok" {
		t.Errorf("expected node 1 collected despite node 0 failure, got %+v", report.Entries[1])
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "slurm_0.out", "hello\n")

	report := Collect(dir, 2)
	rendered := report.Render()

	if !strings.Contains(rendered, "=== node 0 (slurm_0.out) ===") {
		t.Errorf("missing node 0 header:\n%s", rendered)
	}
	if !strings.Contains(rendered, "hello\n") {
		t.Errorf("missing node 0 content:\n%s", rendered)
	}
	if !strings.Contains(rendered, "(no output file)") {
		t.Errorf("missing not-found marker:\n%s", rendered)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "slurm_0.out", "x")
	writeFile(t, dir, "slurm_2.out", "z")

	found, missing, failed := Collect(dir, 3).Summary()
	if found != 2 || missing != 1 || failed != 0 {
		t.Errorf("unexpected summary: found=%d missing=%d failed=%d", found, missing, failed)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
