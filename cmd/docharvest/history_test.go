package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/docharvest/internal/database"
	"github.com/nao1215/docharvest/internal/model"
)

func runWithDownloads(domain string, started time.Time, urls ...string) *model.HarvestReport {
	r := model.NewHarvestReport(domain)
	r.StartedAt = started
	r.PagesFetched = len(urls) + 1
	for _, u := range urls {
		r.Downloads = append(r.Downloads, model.DownloadRecord{
			DownloadURL: u,
			Hierarchy:   []string{"https://www.ex.com/a"},
		})
	}
	return r
}

// seedHistory stores two runs of ex.com and one of ex.org and returns the
// database directory.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	runs := []*model.HarvestReport{
		runWithDownloads("ex.com", base,
			"https://www.ex.com/a.pdf", "https://www.ex.com/b.pdf"),
		runWithDownloads("ex.com", base.Add(24*time.Hour),
			"https://www.ex.com/b.pdf", "https://www.ex.com/c.pdf", "https://www.ex.com/d.pdf"),
		runWithDownloads("ex.org", base, "https://www.ex.org/x.pdf"),
	}
	for _, r := range runs {
		if err := db.SaveRunReport(context.Background(), r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	return dir
}

func executeHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// TestHistoryCmd tests the history command against a seeded database.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)

	t.Run("requires a domain", func(t *testing.T) {
		t.Parallel()
		_, err := executeHistory(t, "--db-dir", dir)
		if err == nil || !strings.Contains(err.Error(), "domain is required") {
			t.Errorf("expected missing domain error, got %v", err)
		}
	})

	t.Run("lists domains", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "--list-domains")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Harvested domains (2)") {
			t.Errorf("expected two domains, got %q", out)
		}
		if !strings.Contains(out, "ex.org") {
			t.Error("expected ex.org in the list")
		}
	})

	t.Run("lists runs", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "ex.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Run history for ex.com (2 runs)") {
			t.Errorf("unexpected output %q", out)
		}
		if !strings.Contains(out, "downloads:3") {
			t.Error("expected counters of the latest run")
		}
	})

	t.Run("lists runs as JSON", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "--json", "ex.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var entries []runEntry
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Summary.Downloads != 3 {
			t.Errorf("expected newest run first, got %d downloads", entries[0].Summary.Downloads)
		}
	})

	t.Run("unknown domain has no runs", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "nothing.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No run history found") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("shows a stored run", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "--json", "ex.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var entries []runEntry
		if err := json.Unmarshal([]byte(out), &entries); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}

		out, err = executeHistory(t, "--db-dir", dir, "--show", strconv.FormatInt(entries[1].ID, 10), "ex.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "https://www.ex.com/a.pdf") {
			t.Error("expected downloads of the older run")
		}
	})

	t.Run("show rejects a run of another domain", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "--json", "ex.org")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var entries []runEntry
		if err := json.Unmarshal([]byte(out), &entries); err != nil || len(entries) != 1 {
			t.Fatalf("expected one ex.org run, got %v (%v)", entries, err)
		}

		_, err = executeHistory(t, "--db-dir", dir, "--show", strconv.FormatInt(entries[0].ID, 10), "ex.com")
		if err == nil || !strings.Contains(err.Error(), "belongs to ex.org") {
			t.Errorf("expected domain mismatch error, got %v", err)
		}
	})

	t.Run("diffs the latest two runs", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "--diff", "ex.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"GREW",
			"[+] https://www.ex.com/c.pdf",
			"[+] https://www.ex.com/d.pdf",
			"[-] https://www.ex.com/a.pdf",
			"Unchanged: 1 downloads",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("diff as markdown", func(t *testing.T) {
		t.Parallel()
		out, err := executeHistory(t, "--db-dir", dir, "--diff", "-m", "ex.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "# Run Comparison: ex.com") {
			t.Error("expected markdown header")
		}
		if !strings.Contains(out, "| Downloads | 2 | 3 | +1 |") {
			t.Errorf("expected downloads row, got %q", out)
		}
	})

	t.Run("diff needs two runs", func(t *testing.T) {
		t.Parallel()
		_, err := executeHistory(t, "--db-dir", dir, "--diff", "ex.org")
		if err == nil || !strings.Contains(err.Error(), "at least 2 runs") {
			t.Errorf("expected error about run count, got %v", err)
		}
	})

	t.Run("diff without history", func(t *testing.T) {
		t.Parallel()
		_, err := executeHistory(t, "--db-dir", dir, "--diff", "nothing.com")
		if !errors.Is(err, errNoHistory) {
			t.Errorf("expected errNoHistory, got %v", err)
		}
	})
}

func TestCompareRuns(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		previous  []string
		current   []string
		trend     string
		added     int
		removed   int
		unchanged int
	}{
		{"grew", []string{"a"}, []string{"a", "b"}, trendGrew, 1, 0, 1},
		{"shrank", []string{"a", "b"}, []string{"b"}, trendShrank, 0, 1, 1},
		{"replaced", []string{"a"}, []string{"b"}, trendUnchanged, 1, 1, 0},
		{"empty", nil, nil, trendUnchanged, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := compareRuns(
				runWithDownloads("ex.com", base, tt.previous...),
				runWithDownloads("ex.com", base.Add(time.Hour), tt.current...),
			)

			if result.Trend != tt.trend {
				t.Errorf("expected trend %q, got %q", tt.trend, result.Trend)
			}
			if len(result.NewDownloads) != tt.added {
				t.Errorf("expected %d new, got %d", tt.added, len(result.NewDownloads))
			}
			if len(result.RemovedDownloads) != tt.removed {
				t.Errorf("expected %d removed, got %d", tt.removed, len(result.RemovedDownloads))
			}
			if result.UnchangedCount != tt.unchanged {
				t.Errorf("expected %d unchanged, got %d", tt.unchanged, result.UnchangedCount)
			}
		})
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta    int
		expected string
	}{
		{3, "+3"},
		{-2, "-2"},
		{0, "0"},
	}

	for _, tt := range tests {
		if got := formatDelta(tt.delta); got != tt.expected {
			t.Errorf("formatDelta(%d): expected %q, got %q", tt.delta, tt.expected, got)
		}
	}
}
