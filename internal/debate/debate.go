// Package debate orchestrates a two-round council debate with a
// moderator synthesis and produces the session record.
package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alienxp03/council/internal/core"
	"github.com/alienxp03/council/internal/provider"
)

// ErrAllMembersFailed is returned when no council member produces a
// round 1 completion, leaving nothing to debate.
var ErrAllMembersFailed = errors.New("all council members failed in round 1")

const defaultTimeout = 60 * time.Second

// Callbacks receive progress notifications during a debate. All fields
// are optional. They are invoked from the orchestrator goroutine, in
// phase order, with member results in council-configured order.
type Callbacks struct {
	OnPhase           func(phase core.Phase)
	OnMemberResult    func(round int, res core.MemberResult)
	OnModeratorResult func(res core.MemberResult)
}

// Orchestrator runs debates for a fixed council roster.
type Orchestrator struct {
	registry  *provider.Registry
	members   []core.CouncilMember
	moderator core.CouncilMember
	timeout   time.Duration
}

// New creates an orchestrator. The member order given here is the
// presentation order of every session record it produces. A
// non-positive timeout falls back to 60s per call.
func New(registry *provider.Registry, members []core.CouncilMember, moderator core.CouncilMember, timeout time.Duration) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("at least one council member is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	roster := make([]core.CouncilMember, len(members))
	copy(roster, members)

	return &Orchestrator{
		registry:  registry,
		members:   roster,
		moderator: moderator,
		timeout:   timeout,
	}, nil
}

// RunDebate runs the full debate for a question and returns the
// finished session record. The record is returned even when the
// session fails, alongside the error describing why.
func (o *Orchestrator) RunDebate(ctx context.Context, question string) (*core.SessionRecord, error) {
	return o.RunDebateWithCallbacks(ctx, question, nil)
}

// RunDebateWithCallbacks is RunDebate with progress notifications.
func (o *Orchestrator) RunDebateWithCallbacks(ctx context.Context, question string, cb *Callbacks) (*core.SessionRecord, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	builder := newRecordBuilder(question, o.members)
	bound := o.bind(o.members)
	mod := o.bindOne(o.moderator)
	asm := newPromptAssembler(question)
	exec := &roundExecutor{timeout: o.timeout}

	slog.Info("Debate started", "session", builder.rec.ID, "members", len(bound))

	// Round 1: every member answers the raw question independently.
	o.advance(builder, core.PhaseRound1Running, cb)
	round1 := exec.run(ctx, 1, bound, func(m boundMember) (*provider.Request, error) {
		return asm.round1Request(m.CouncilMember), nil
	})
	o.emitResults(1, round1, cb)
	builder.addRound(round1)
	o.advance(builder, core.PhaseRound1Done, cb)

	// Members without a round 1 completion drop out of the debate.
	survivors := make([]boundMember, 0, len(bound))
	for i, m := range bound {
		if round1.Results[i].Succeeded() {
			survivors = append(survivors, m)
		}
	}

	if len(survivors) == 0 {
		builder.setModerator(core.MemberResult{
			Member: o.moderator.Name,
			Failure: &core.FailureRecord{
				Member:  o.moderator.Name,
				Kind:    core.ErrUnknown,
				Message: "synthesis skipped: no council member produced a completion",
			},
		})
		builder.finish(core.PhaseFailed)
		rec, err := builder.snapshot()
		if err != nil {
			return nil, err
		}
		return rec, fmt.Errorf("%w: %s", ErrAllMembersFailed, summarizeFailures(round1))
	}

	// Round 2: each survivor rebuts its peers' round 1 answers.
	o.advance(builder, core.PhaseRound2Running, cb)
	round2 := exec.run(ctx, 2, survivors, func(m boundMember) (*provider.Request, error) {
		return asm.round2Request(m.CouncilMember, peerAnswers(round1, survivors, m.Name))
	})
	o.emitResults(2, round2, cb)
	builder.addRound(round2)
	o.advance(builder, core.PhaseRound2Done, cb)

	// Moderator synthesis over each member's latest answer. A failure
	// here still completes the session; the council answers stand on
	// their own.
	o.advance(builder, core.PhaseModerating, cb)
	modResult := exec.call(ctx, mod, func(m boundMember) (*provider.Request, error) {
		return asm.moderatorRequest(m.CouncilMember, finalAnswers(round1, round2, survivors))
	})
	builder.setModerator(modResult)
	if cb != nil && cb.OnModeratorResult != nil {
		cb.OnModeratorResult(modResult)
	}

	builder.finish(core.PhaseComplete)
	slog.Info("Debate completed", "session", builder.rec.ID, "moderated", modResult.Succeeded())
	return builder.snapshot()
}

func (o *Orchestrator) advance(builder *recordBuilder, phase core.Phase, cb *Callbacks) {
	builder.setPhase(phase)
	slog.Debug("Phase changed", "session", builder.rec.ID, "phase", phase)
	if cb != nil && cb.OnPhase != nil {
		cb.OnPhase(phase)
	}
}

func (o *Orchestrator) emitResults(round int, rr core.RoundResult, cb *Callbacks) {
	if cb == nil || cb.OnMemberResult == nil {
		return
	}
	for _, res := range rr.Results {
		cb.OnMemberResult(round, res)
	}
}

func (o *Orchestrator) bind(members []core.CouncilMember) []boundMember {
	bound := make([]boundMember, len(members))
	for i, m := range members {
		bound[i] = o.bindOne(m)
	}
	return bound
}

func (o *Orchestrator) bindOne(m core.CouncilMember) boundMember {
	adapter, _ := o.registry.Get(m.Provider)
	return boundMember{CouncilMember: m, adapter: adapter}
}

// peerAnswers collects round 1 answers of every survivor except self,
// in the survivor slice's (council-configured) order.
func peerAnswers(round1 core.RoundResult, survivors []boundMember, self string) []labeledAnswer {
	peers := make([]labeledAnswer, 0, len(survivors))
	for _, m := range survivors {
		if m.Name == self {
			continue
		}
		res, ok := round1.Get(m.Name)
		if !ok || !res.Succeeded() {
			continue
		}
		peers = append(peers, labeledAnswer{Label: m.Label(), Text: res.Completion.Text})
	}
	return peers
}

// finalAnswers returns each survivor's latest answer: round 2 when it
// succeeded, otherwise its round 1 answer.
func finalAnswers(round1, round2 core.RoundResult, survivors []boundMember) []labeledAnswer {
	answers := make([]labeledAnswer, 0, len(survivors))
	for _, m := range survivors {
		res, ok := round2.Get(m.Name)
		if !ok || !res.Succeeded() {
			res, ok = round1.Get(m.Name)
		}
		if !ok || !res.Succeeded() {
			continue
		}
		answers = append(answers, labeledAnswer{Label: m.Label(), Text: res.Completion.Text})
	}
	return answers
}

func summarizeFailures(rr core.RoundResult) string {
	parts := make([]string, 0, len(rr.Results))
	for _, res := range rr.Results {
		if res.Failure != nil {
			parts = append(parts, fmt.Sprintf("%s (%s): %s", res.Member, res.Failure.Kind, res.Failure.Message))
		}
	}
	return strings.Join(parts, "; ")
}
