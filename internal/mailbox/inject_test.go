package mailbox

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestFormatForPrompt_Empty(t *testing.T) {
	if got := FormatForPrompt(nil); got != "" {
		t.Errorf("FormatForPrompt(nil) = %q, want empty string", got)
	}
	if got := FormatForPrompt([]Message{}); got != "" {
		t.Errorf("FormatForPrompt([]) = %q, want empty string", got)
	}
}

func TestFormatForPrompt_SingleMessage(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	result := FormatForPrompt([]Message{{
		From:      "agent-a",
		To:        "agent-b",
		Type:      MessageQuestion,
		Content:   "Which port does the API use?",
		Timestamp: ts,
		Context:   Context{ProjectDir: "/src/api", GitBranch: "main"},
	}})

	for _, want := range []string{
		"<colony-messages>",
		"</colony-messages>",
		"[QUESTION]",
		"From: agent-a  To: agent-b  At: 2025-01-01T12:00:00Z",
		"Context: dir=/src/api, branch=main",
		"Which port does the API use?",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("output missing %q:\n%s", want, result)
		}
	}
}

func TestFormatForPrompt_GroupsByType(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	result := FormatForPrompt([]Message{
		{From: "a", To: BroadcastRecipient, Type: MessageInfo, Content: "info-1", Timestamp: base},
		{From: "b", To: BroadcastRecipient, Type: MessageError, Content: "err-1", Timestamp: base.Add(time.Second)},
		{From: "c", To: BroadcastRecipient, Type: MessageInfo, Content: "info-2", Timestamp: base.Add(2 * time.Second)},
	})

	infoIdx := strings.Index(result, "[INFO]")
	errIdx := strings.Index(result, "[ERROR]")
	if infoIdx < 0 || errIdx < 0 || infoIdx > errIdx {
		t.Fatalf("expected [INFO] before [ERROR]:\n%s", result)
	}
	if strings.Count(result, "[INFO]") != 1 {
		t.Errorf("expected a single [INFO] header:\n%s", result)
	}
	// info-2 belongs to the INFO group even though it came after the error.
	if strings.Index(result, "info-2") > errIdx {
		t.Errorf("info-2 should be grouped under [INFO]:\n%s", result)
	}
	if !strings.Contains(result, "To: everyone") {
		t.Errorf("broadcasts should be addressed to everyone:\n%s", result)
	}
	if strings.Contains(result, "Context:") {
		t.Errorf("empty context should be omitted:\n%s", result)
	}
}

func TestFilter(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	messages := []Message{
		{From: "a", Type: MessageInfo, Content: "1", Timestamp: base},
		{From: "b", Type: MessageQuestion, Content: "2", Timestamp: base.Add(time.Minute)},
		{From: "a", Type: MessageQuestion, Content: "3", Timestamp: base.Add(2 * time.Minute)},
		{From: "c", Type: MessageError, Content: "4", Timestamp: base.Add(3 * time.Minute)},
	}

	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"no filters", FilterOptions{}, []string{"1", "2", "3", "4"}},
		{"by type", FilterOptions{Types: []MessageType{MessageQuestion}}, []string{"2", "3"}},
		{"by sender", FilterOptions{From: "a"}, []string{"1", "3"}},
		{"since is exclusive", FilterOptions{Since: base.Add(time.Minute)}, []string{"3", "4"}},
		{"max keeps most recent", FilterOptions{MaxMessages: 2}, []string{"3", "4"}},
		{"combined", FilterOptions{Types: []MessageType{MessageQuestion, MessageInfo}, MaxMessages: 1}, []string{"3"}},
		{"nothing matches", FilterOptions{From: "nobody"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contents(Filter(messages, tt.opts))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Filter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatFiltered(t *testing.T) {
	messages := []Message{
		{From: "a", To: "b", Type: MessageInfo, Content: "keep me"},
		{From: "c", To: "b", Type: MessageInfo, Content: "drop me"},
	}
	result := FormatFiltered(messages, FilterOptions{From: "a"})
	if !strings.Contains(result, "keep me") || strings.Contains(result, "drop me") {
		t.Errorf("FormatFiltered output:\n%s", result)
	}
	if got := FormatFiltered(messages, FilterOptions{From: "z"}); got != "" {
		t.Errorf("FormatFiltered with no matches = %q, want empty", got)
	}
}
