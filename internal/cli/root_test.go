package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestExecuteMemoryBackend(t *testing.T) {
	docs := writeFile(t, "cars.jsonl", `{"Make": "FORD", "County": "KINGS", "Unladen Weight": 2100}
{"Make": "HYUND", "County": "QUEENS", "Unladen Weight": 1200}
{"Make": "FORD", "County": "QUEENS", "Unladen Weight": 1800}
`)
	wl := writeFile(t, "workload.jsonl", `{"Make": "FORD"}
{"filter": {"County": "QUEENS"}, "sort": ["Unladen Weight"]}
`)
	global := []string{"--backend", "memory", "--memory-load", docs, "-c", "cars", "--log-level", "error"}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"help"}, 0},
		{"find", []string{"find", "-f", `{"Make": "FORD"}`, "--projection", "County"}, 0},
		{"explain", []string{"explain", "-f", `{"Make": "FORD"}`}, 0},
		{"explain json", []string{"--format", "json", "explain", "--sort", "County"}, 0},
		{"bad filter", []string{"explain", "-f", `{"$or": []}`}, 2},
		{"estimate", []string{"estimate", "-f", `{"County": "QUEENS"}`, "--sample-size", "2", "--seed", "3"}, 0},
		{"estimate bad config", []string{"estimate", "--sample-size", "2", "--sample-ratio", "0.5"}, 1},
		{"sample", []string{"sample", "-f", `{"Make": "FORD"}`, "-n", "4"}, 0},
		{"sample empty region", []string{"sample", "-f", `{"Make": "TOYOT"}`}, 1},
		{"analyze", []string{"analyze", "-w", wl, "--index", "Make,County", "--index", "County,Unladen Weight"}, 0},
		{"analyze without candidates", []string{"analyze", "-w", wl}, 2},
		{"workload run", []string{"workload", "run", "-w", wl}, 0},
		{"workload show", []string{"workload", "show", "-w", wl}, 0},
		{"index create", []string{"index", "create", "--fields", "Make,County"}, 0},
		{"index create bad", []string{"index", "create", "--fields", "a,a"}, 2},
		{"index drop unknown", []string{"index", "drop", "--name", "nope"}, 1},
		{"index drop last", []string{"index", "drop", "--last"}, 0},
		{"unknown", []string{"frobnicate"}, 2},
	}
	for _, tt := range tests {
		if got := Execute(append(append([]string{}, global...), tt.args...)); got != tt.want {
			t.Errorf("%s: exit code %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestExecuteNeedsCollection(t *testing.T) {
	t.Setenv("MINDEXER_COLLECTION", "")
	if got := Execute([]string{"--backend", "memory", "explain"}); got != 1 {
		t.Fatalf("exit code %d, want 1", got)
	}
}

func TestWorkloadAddCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.jsonl")
	for i := 0; i < 2; i++ {
		if got := Execute([]string{"workload", "add", "-w", path, "-f", `{"a": 1}`}); got != 0 {
			t.Fatalf("exit code %d", got)
		}
	}
	if got := Execute([]string{"--log-level", "error", "workload", "show", "-w", path}); got != 0 {
		t.Fatalf("exit code %d", got)
	}
}
