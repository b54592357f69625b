// Package core contains the core domain types for council.
package core

import (
	"fmt"
	"time"
)

// Phase represents the orchestration state of a debate session.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseRound1Running Phase = "round1_running"
	PhaseRound1Done    Phase = "round1_done"
	PhaseRound2Running Phase = "round2_running"
	PhaseRound2Done    Phase = "round2_done"
	PhaseModerating    Phase = "moderating"
	PhaseComplete      Phase = "complete"
	PhaseFailed        Phase = "failed"
)

// Terminal reports whether the phase is a final state.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	ErrAuth      ErrorKind = "auth"
	ErrTimeout   ErrorKind = "timeout"
	ErrRateLimit ErrorKind = "rate_limit"
	ErrMalformed ErrorKind = "malformed_response"
	ErrUnknown   ErrorKind = "unknown"
)

// GenerationOptions holds per-member generation settings.
// Thinking and Reasoning are vendor-specific extended-reasoning tables
// passed through to the provider without interpretation.
type GenerationOptions struct {
	Temperature     *float64       `json:"temperature,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Thinking        map[string]any `json:"thinking,omitempty"`
	Reasoning       map[string]any `json:"reasoning,omitempty"`
}

// CouncilMember identifies one configured LLM endpoint in the debate.
// Immutable once a session starts.
type CouncilMember struct {
	Name     string            `json:"name"`
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Options  GenerationOptions `json:"options,omitempty"`
}

// Label returns the member's display identity, e.g. "anthropic:claude-sonnet-4-5".
func (m CouncilMember) Label() string {
	if m.Model == "" {
		return m.Name
	}
	return fmt.Sprintf("%s:%s", m.Name, m.Model)
}

// Usage holds token accounting reported by a provider.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}

// Completion is the text produced by one member for one round.
type Completion struct {
	Text      string        `json:"text"`
	Reasoning string        `json:"reasoning,omitempty"`
	Model     string        `json:"model,omitempty"`
	Usage     *Usage        `json:"usage,omitempty"`
	Latency   time.Duration `json:"latency_ns,omitempty"`
}

// FailureRecord explains why a member/round slot has no completion. It
// occupies the same slot a Completion would; failures are never
// silently dropped.
type FailureRecord struct {
	Member  string    `json:"member"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// MemberResult is one slot in a round. Exactly one of Completion or
// Failure is set.
type MemberResult struct {
	Member     string         `json:"member"`
	Completion *Completion    `json:"completion,omitempty"`
	Failure    *FailureRecord `json:"failure,omitempty"`
}

// Succeeded reports whether the slot holds a completion.
func (r MemberResult) Succeeded() bool {
	return r.Completion != nil
}

// RoundResult maps every participating member to its outcome for one
// round, in configured council order regardless of arrival order.
type RoundResult struct {
	Round   int            `json:"round"`
	Results []MemberResult `json:"results"`
}

// Get returns the slot for the named member.
func (r RoundResult) Get(member string) (MemberResult, bool) {
	for _, res := range r.Results {
		if res.Member == member {
			return res, true
		}
	}
	return MemberResult{}, false
}

// Successes returns the slots that hold completions, preserving order.
func (r RoundResult) Successes() []MemberResult {
	var out []MemberResult
	for _, res := range r.Results {
		if res.Succeeded() {
			out = append(out, res)
		}
	}
	return out
}

// SessionRecord is the immutable, complete output of one debate
// invocation: the sole unit persisted to history and formatted for
// output.
type SessionRecord struct {
	ID          string          `json:"id"`
	Question    string          `json:"question"`
	Members     []CouncilMember `json:"members"`
	Rounds      []RoundResult   `json:"rounds"`
	Moderator   MemberResult    `json:"moderator"`
	Phase       Phase           `json:"phase"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Round returns the result for the given round number (1-based).
func (s *SessionRecord) Round(n int) (RoundResult, bool) {
	for _, r := range s.Rounds {
		if r.Round == n {
			return r, true
		}
	}
	return RoundResult{}, false
}

// FinalAnswer returns a member's last successful completion: the
// round-2 answer when present, falling back to round 1.
func (s *SessionRecord) FinalAnswer(member string) *Completion {
	for i := len(s.Rounds) - 1; i >= 0; i-- {
		if res, ok := s.Rounds[i].Get(member); ok && res.Succeeded() {
			return res.Completion
		}
	}
	return nil
}

// Summary returns a lightweight listing view of the session.
func (s *SessionRecord) Summary() SessionSummary {
	return SessionSummary{
		ID:          s.ID,
		Question:    s.Question,
		Phase:       s.Phase,
		MemberCount: len(s.Members),
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
	}
}

// SessionSummary is a lightweight representation for listing sessions.
type SessionSummary struct {
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Phase       Phase      `json:"phase"`
	MemberCount int        `json:"member_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
