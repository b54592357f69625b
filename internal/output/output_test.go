package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alienxp03/council/internal/core"
)

func sampleRecord() *core.SessionRecord {
	now := time.Now().UTC()
	return &core.SessionRecord{
		ID:       "sess-1",
		Question: "Is the network the computer?",
		Members: []core.CouncilMember{
			{Name: "openai", Provider: "openai", Model: "gpt-4.1-mini"},
			{Name: "gemini", Provider: "gemini", Model: "gemini-2.5-pro"},
		},
		Rounds: []core.RoundResult{
			{
				Round: 1,
				Results: []core.MemberResult{
					{Member: "openai", Completion: &core.Completion{Text: "Yes, mostly."}},
					{Member: "gemini", Failure: &core.FailureRecord{Member: "gemini", Kind: core.ErrTimeout, Message: "deadline exceeded"}},
				},
			},
		},
		Moderator:   core.MemberResult{Member: "moderator", Completion: &core.Completion{Text: "It depends."}},
		Phase:       core.PhaseComplete,
		CreatedAt:   now,
		CompletedAt: &now,
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleRecord(), ModeText); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Question: Is the network the computer?",
		"Round 1",
		"[openai:gpt-4.1-mini]",
		"Yes, mostly.",
		"[gemini:gemini-2.5-pro] FAILED (timeout): deadline exceeded",
		"Moderator Synthesis",
		"It depends.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q", want)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleRecord(), ModeJSON); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	var got core.SessionRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.ID != "sess-1" {
		t.Errorf("ID = %s", got.ID)
	}
}

func TestRenderUnknownMode(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleRecord(), "yaml"); err == nil {
		t.Fatal("expected an error for an unknown mode")
	}
}
