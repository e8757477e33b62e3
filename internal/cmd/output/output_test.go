package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
	"gopkg.in/yaml.v3"
)

var created = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleTasks() []*taskqueue.Task {
	return []*taskqueue.Task{
		{
			ID: "T1", Title: "Parser", Status: taskqueue.TaskInProgress, Priority: taskqueue.PriorityHigh,
			ClaimedBy: "agent-a", Progress: 40, Dependencies: []string{}, CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: "T2", Title: "Codegen\nsecond line", Status: taskqueue.TaskPending, Priority: taskqueue.PriorityMedium,
			AssignedTo: "agent-b", Dependencies: []string{"T1"}, CreatedAt: created, UpdatedAt: created,
		},
	}
}

func newPrinter(t *testing.T, format string) (*Printer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	p, err := New(&buf, format, true)
	if err != nil {
		t.Fatalf("New(%q) error = %v", format, err)
	}
	return p, &buf
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", FormatTable},
		{"text", FormatTable},
		{"TABLE", FormatTable},
		{"json", FormatJSON},
		{" yaml ", FormatYAML},
	}
	for _, tt := range tests {
		p, err := New(&bytes.Buffer{}, tt.in, false)
		if err != nil {
			t.Fatalf("New(%q) error = %v", tt.in, err)
		}
		if p.Format() != tt.want {
			t.Errorf("New(%q).Format() = %q, want %q", tt.in, p.Format(), tt.want)
		}
	}

	if _, err := New(&bytes.Buffer{}, "xml", false); !errors.Is(err, &errors.ValidationError{}) {
		t.Errorf("New(xml) error = %v, want ValidationError", err)
	}
}

func TestTasks_Table(t *testing.T) {
	p, buf := newPrinter(t, "table")
	if err := p.Tasks(sampleTasks()); err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "TITLE") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"T1", "in_progress", "high", "40%", "agent-a", "Parser"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row 1 %q missing %q", lines[1], want)
		}
	}
	for _, want := range []string{"(agent-b)", "T1", "Codegen second line"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("row 2 %q missing %q", lines[2], want)
		}
	}

	// A buffer is not a terminal, so no escape codes even with color on.
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("non-terminal output contains ANSI escapes")
	}

	// Columns line up.
	if strings.Index(lines[0], "STATUS") != strings.Index(lines[1], "in_progress") {
		t.Errorf("STATUS column misaligned:\n%s", buf.String())
	}
}

func TestTasks_Empty(t *testing.T) {
	p, buf := newPrinter(t, "table")
	if err := p.Tasks(nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "No tasks." {
		t.Errorf("output = %q", buf.String())
	}

	p, buf = newPrinter(t, "json")
	if err := p.Tasks(nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("json output = %q, want []", buf.String())
	}
}

func TestTasks_JSON(t *testing.T) {
	p, buf := newPrinter(t, "json")
	if err := p.Tasks(sampleTasks()); err != nil {
		t.Fatal(err)
	}

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[0]["id"] != "T1" || got[0]["status"] != "in_progress" || got[1]["assigned_to"] != "agent-b" {
		t.Errorf("decoded = %v", got)
	}
}

func TestTask_YAML(t *testing.T) {
	p, buf := newPrinter(t, "yaml")
	if err := p.Task(sampleTasks()[1]); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if got["id"] != "T2" || got["priority"] != "medium" {
		t.Errorf("decoded = %v", got)
	}
	if deps, _ := got["dependencies"].([]any); len(deps) != 1 || deps[0] != "T1" {
		t.Errorf("dependencies = %v", got["dependencies"])
	}
}

func TestTask_Text(t *testing.T) {
	task := sampleTasks()[0]
	task.Description = "Write the parser"
	task.BlockedReason = ""

	p, buf := newPrinter(t, "text")
	if err := p.Task(task); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID:", "T1", "Status:", "in_progress", "Claimed by:", "agent-a", "Write the parser"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, absent := range []string{"Blocked:", "Depends on:", "Completed:"} {
		if strings.Contains(out, absent) {
			t.Errorf("output should omit empty field %q:\n%s", absent, out)
		}
	}
}

func TestMessages(t *testing.T) {
	msgs := []mailbox.Message{
		{ID: "a-1", From: "agent-a", To: "agent-b", Content: "ready?", Type: mailbox.MessageQuestion, Timestamp: created},
		{ID: "b-1", From: "agent-b", To: "all", Content: "line one\nline two", Type: mailbox.MessageInfo, Timestamp: created},
	}

	t.Run("text", func(t *testing.T) {
		p, buf := newPrinter(t, "table")
		if err := p.Messages(msgs); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"agent-a → agent-b", "(question)", "a-1", "  ready?", "agent-b → everyone", "  line one\n  line two"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		p, buf := newPrinter(t, "json")
		if err := p.Messages(msgs); err != nil {
			t.Fatal(err)
		}
		var got []mailbox.Message
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 || got[0].Type != mailbox.MessageQuestion || got[1].To != "all" {
			t.Errorf("decoded = %+v", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		p, buf := newPrinter(t, "table")
		if err := p.Messages(nil); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != "No messages." {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestStatus(t *testing.T) {
	p, buf := newPrinter(t, "table")
	if err := p.Status(taskqueue.QueueStatus{Total: 3, Pending: 2, Claimable: 1, Completed: 1}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "3") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLinefSuppressedWhenStructured(t *testing.T) {
	p, buf := newPrinter(t, "json")
	p.Linef("hello %s", "world")
	p.Successf("done")
	if buf.Len() != 0 {
		t.Errorf("structured printer wrote %q", buf.String())
	}

	p, buf = newPrinter(t, "table")
	p.Successf("claimed %s", "T1")
	if buf.String() != "✓ claimed T1\n" {
		t.Errorf("Successf = %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"too long text", 6, "too l…"},
		{"unbounded", 0, "unbounded"},
		{"日本語テキスト", 5, "日本…"},
		{"\x1b[31mred alert\x1b[0m", 20, "\x1b[31mred alert\x1b[0m"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"T1", 2},
		{"日本", 4},
		{"\x1b[1mbold\x1b[0m", 4},
		{"", 0},
	}
	for _, tt := range tests {
		if got := displayWidth(tt.in); got != tt.want {
			t.Errorf("displayWidth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
