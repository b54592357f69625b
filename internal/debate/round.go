package debate

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alienxp03/council/internal/core"
	"github.com/alienxp03/council/internal/provider"
)

// boundMember is a council member with its resolved provider adapter.
// The adapter is nil when the member's provider is not registered.
type boundMember struct {
	core.CouncilMember
	adapter provider.Provider
}

// roundExecutor dispatches one generate call per member concurrently,
// each bounded by the per-call timeout. A member's failure never
// aborts or delays collection of the others; the executor waits for
// the slowest outcome. Result order is the given member order,
// independent of completion arrival order.
type roundExecutor struct {
	timeout time.Duration
}

func (e *roundExecutor) run(ctx context.Context, round int, members []boundMember, requestFor func(boundMember) (*provider.Request, error)) core.RoundResult {
	results := make([]core.MemberResult, len(members))

	var g errgroup.Group
	for i, m := range members {
		i, m := i, m
		g.Go(func() error {
			results[i] = e.call(ctx, m, requestFor)
			return nil
		})
	}
	// Tasks capture outcomes as values; no error crosses the barrier.
	_ = g.Wait()

	return core.RoundResult{Round: round, Results: results}
}

// call performs a single provider call and folds any failure into the
// member's slot.
func (e *roundExecutor) call(ctx context.Context, m boundMember, requestFor func(boundMember) (*provider.Request, error)) core.MemberResult {
	if m.adapter == nil {
		return failureResult(m, core.ErrUnknown, "provider not registered: "+m.Provider)
	}
	if m.Model == "" {
		return failureResult(m, core.ErrUnknown, "no model configured")
	}

	req, err := requestFor(m)
	if err != nil {
		return failureResult(m, core.ErrUnknown, err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	completion, err := m.adapter.Generate(callCtx, req)
	if err != nil {
		kind := provider.Classify(err)
		slog.Debug("Member call failed", "member", m.Name, "kind", kind, "error", err)
		return failureResult(m, kind, err.Error())
	}

	slog.Debug("Member call completed", "member", m.Name, "latency", completion.Latency)
	return core.MemberResult{Member: m.Name, Completion: completion}
}

func failureResult(m boundMember, kind core.ErrorKind, message string) core.MemberResult {
	return core.MemberResult{
		Member: m.Name,
		Failure: &core.FailureRecord{
			Member:  m.Name,
			Kind:    kind,
			Message: message,
		},
	}
}
