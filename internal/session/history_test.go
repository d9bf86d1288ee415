package session

import (
	"testing"

	"alpaca/internal/storage"
)

func TestAssembleHistoryWithPreset(t *testing.T) {
	msgs := []storage.Message{
		{Role: storage.RoleUser, Content: "hi"},
		{Role: storage.RoleAssistant, Content: "hello"},
	}
	preset := &storage.CustomModel{Name: "pirate", BaseModel: "llama3", SystemPrompt: "Arr."}

	got := AssembleHistory(msgs, preset)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Role != storage.RoleSystem || got[0].Content != "Arr." {
		t.Fatalf("expected leading system entry, got %+v", got[0])
	}
	if got[1].Content != "hi" || got[2].Content != "hello" {
		t.Fatalf("history order changed: %+v", got)
	}
}

func TestAssembleHistoryWithoutPreset(t *testing.T) {
	msgs := []storage.Message{{Role: storage.RoleUser, Content: "hi"}}

	got := AssembleHistory(msgs, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Role != storage.RoleUser {
		t.Fatalf("unexpected role %q", got[0].Role)
	}
}
