package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alienxp03/council/internal/core"
)

func testRecord(id, question string) *core.SessionRecord {
	now := time.Now().UTC()
	completed := now.Add(2 * time.Second)
	return &core.SessionRecord{
		ID:       id,
		Question: question,
		Members: []core.CouncilMember{
			{Name: "openai", Provider: "openai", Model: "gpt-4.1-mini"},
			{Name: "anthropic", Provider: "anthropic", Model: "claude-sonnet-4-5"},
		},
		Rounds: []core.RoundResult{
			{
				Round: 1,
				Results: []core.MemberResult{
					{Member: "openai", Completion: &core.Completion{Text: "answer a"}},
					{Member: "anthropic", Failure: &core.FailureRecord{Member: "anthropic", Kind: core.ErrAuth, Message: "missing API key"}},
				},
			},
			{
				Round: 2,
				Results: []core.MemberResult{
					{Member: "openai", Completion: &core.Completion{Text: "revised answer a"}},
				},
			},
		},
		Moderator:   core.MemberResult{Member: "moderator", Completion: &core.Completion{Text: "synthesis"}},
		Phase:       core.PhaseComplete,
		CreatedAt:   now,
		CompletedAt: &completed,
	}
}

func TestSQLiteStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	t.Run("SaveAndGetSession", func(t *testing.T) {
		rec := testRecord("session-1", "Which cache policy?")
		if err := store.SaveSession(rec); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		got, err := store.GetSession(rec.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got == nil {
			t.Fatal("session not found")
		}
		if got.Question != rec.Question {
			t.Errorf("Question mismatch: got %s, want %s", got.Question, rec.Question)
		}
		if got.Phase != core.PhaseComplete {
			t.Errorf("Phase mismatch: got %s, want %s", got.Phase, core.PhaseComplete)
		}
		if len(got.Rounds) != 2 {
			t.Fatalf("got %d rounds, want 2", len(got.Rounds))
		}

		round1, _ := got.Round(1)
		slot, ok := round1.Get("anthropic")
		if !ok || slot.Failure == nil || slot.Failure.Kind != core.ErrAuth {
			t.Errorf("anthropic failure not preserved: %+v", slot)
		}
		if !got.Moderator.Succeeded() {
			t.Errorf("moderator result not preserved: %+v", got.Moderator)
		}
	})

	t.Run("GetMissingSession", func(t *testing.T) {
		got, err := store.GetSession("no-such-id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for a missing session, got %+v", got)
		}
	})

	t.Run("RejectNonTerminalRecord", func(t *testing.T) {
		rec := testRecord("session-running", "q")
		rec.Phase = core.PhaseRound1Running
		if err := store.SaveSession(rec); err == nil {
			t.Fatal("expected an error saving a non-terminal record")
		}
	})

	t.Run("ListSessions", func(t *testing.T) {
		older := testRecord("session-older", "older question")
		older.CreatedAt = time.Now().UTC().Add(-time.Hour)
		if err := store.SaveSession(older); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		summaries, err := store.ListSessions(10, 0)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(summaries) != 2 {
			t.Fatalf("got %d summaries, want 2", len(summaries))
		}
		if summaries[0].ID != "session-1" {
			t.Errorf("newest first: got %s, want session-1", summaries[0].ID)
		}
		if summaries[0].MemberCount != 2 {
			t.Errorf("MemberCount = %d, want 2", summaries[0].MemberCount)
		}
	})

	t.Run("DeleteSession", func(t *testing.T) {
		if err := store.DeleteSession("session-1"); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		got, err := store.GetSession("session-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("session still present after delete")
		}
	})
}
