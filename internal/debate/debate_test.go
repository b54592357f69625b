package debate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alienxp03/council/internal/core"
	"github.com/alienxp03/council/internal/provider"
)

// scriptedProvider is a test double whose behavior can vary per call.
// It records every prompt it receives.
type scriptedProvider struct {
	name string

	mu      sync.Mutex
	calls   int
	prompts []string

	// fn computes the outcome for the given call number (1-based).
	fn func(call int, req *provider.Request) (*core.Completion, error)
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, req *provider.Request) (*core.Completion, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()

	if p.fn != nil {
		return p.fn(call, req)
	}
	return &core.Completion{Text: p.name + " answer", Model: req.Model}, nil
}

func (p *scriptedProvider) promptForCall(call int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if call < 1 || call > len(p.prompts) {
		return ""
	}
	return p.prompts[call-1]
}

func respondWith(texts ...string) func(int, *provider.Request) (*core.Completion, error) {
	return func(call int, req *provider.Request) (*core.Completion, error) {
		idx := call - 1
		if idx >= len(texts) {
			idx = len(texts) - 1
		}
		return &core.Completion{Text: texts[idx], Model: req.Model}, nil
	}
}

func failWith(kind core.ErrorKind, msg string) func(int, *provider.Request) (*core.Completion, error) {
	return func(call int, req *provider.Request) (*core.Completion, error) {
		return nil, &provider.Error{Provider: "scripted", Kind: kind, Message: msg}
	}
}

func testMember(name string) core.CouncilMember {
	return core.CouncilMember{Name: name, Provider: name, Model: "test-model"}
}

func testOrchestrator(t *testing.T, timeout time.Duration, moderator *scriptedProvider, members ...*scriptedProvider) (*Orchestrator, []core.CouncilMember) {
	t.Helper()

	registry := provider.NewRegistry()
	roster := make([]core.CouncilMember, 0, len(members))
	for _, p := range members {
		registry.Register(p)
		roster = append(roster, testMember(p.name))
	}
	registry.Register(moderator)

	mod := core.CouncilMember{Name: "moderator", Provider: moderator.name, Model: "mod-model"}
	orch, err := New(registry, roster, mod, timeout)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return orch, roster
}

func TestRunDebateAllSucceed(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha", fn: respondWith("alpha r1", "alpha r2")}
	beta := &scriptedProvider{name: "beta", fn: respondWith("beta r1", "beta r2")}
	gamma := &scriptedProvider{name: "gamma", fn: respondWith("gamma r1", "gamma r2")}
	mod := &scriptedProvider{name: "judge", fn: respondWith("final synthesis")}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha, beta, gamma)

	rec, err := orch.RunDebate(context.Background(), "What is the best cache eviction policy?")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}

	if rec.Phase != core.PhaseComplete {
		t.Errorf("Phase = %s, want %s", rec.Phase, core.PhaseComplete)
	}
	if rec.ID == "" {
		t.Error("record has no ID")
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if len(rec.Rounds) != 2 {
		t.Fatalf("got %d rounds, want 2", len(rec.Rounds))
	}

	for _, round := range rec.Rounds {
		if len(round.Results) != 3 {
			t.Errorf("round %d has %d slots, want 3", round.Round, len(round.Results))
		}
		for _, res := range round.Results {
			if !res.Succeeded() {
				t.Errorf("round %d member %s unexpectedly failed", round.Round, res.Member)
			}
		}
	}

	if !rec.Moderator.Succeeded() {
		t.Fatalf("moderator failed: %+v", rec.Moderator.Failure)
	}
	if rec.Moderator.Completion.Text != "final synthesis" {
		t.Errorf("moderator text = %q", rec.Moderator.Completion.Text)
	}
}

func TestFailedMemberExcludedFromRound2(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha", fn: respondWith("alpha r1", "alpha r2")}
	beta := &scriptedProvider{name: "beta", fn: failWith(core.ErrAuth, "invalid api key")}
	gamma := &scriptedProvider{name: "gamma", fn: respondWith("gamma r1", "gamma r2")}
	mod := &scriptedProvider{name: "judge"}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha, beta, gamma)

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}

	round1, _ := rec.Round(1)
	betaSlot, ok := round1.Get("beta")
	if !ok {
		t.Fatal("beta has no round 1 slot")
	}
	if betaSlot.Failure == nil || betaSlot.Failure.Kind != core.ErrAuth {
		t.Errorf("beta round 1 failure = %+v, want auth kind", betaSlot.Failure)
	}

	round2, _ := rec.Round(2)
	if len(round2.Results) != 2 {
		t.Fatalf("round 2 has %d slots, want 2", len(round2.Results))
	}
	if _, ok := round2.Get("beta"); ok {
		t.Error("beta has a round 2 slot despite failing round 1")
	}

	// Surviving members only debate answers that exist. The failed
	// member must not appear in anyone's rebuttal prompt.
	for _, p := range []*scriptedProvider{alpha, gamma} {
		prompt := p.promptForCall(2)
		if strings.Contains(prompt, "beta") {
			t.Errorf("%s round 2 prompt mentions the failed member:\n%s", p.name, prompt)
		}
	}

	// Beta was called exactly once.
	if beta.calls != 1 {
		t.Errorf("beta called %d times, want 1", beta.calls)
	}
}

func TestPresentationOrderIndependentOfArrival(t *testing.T) {
	slow := func(d time.Duration, text string) func(int, *provider.Request) (*core.Completion, error) {
		return func(call int, req *provider.Request) (*core.Completion, error) {
			time.Sleep(d)
			return &core.Completion{Text: text}, nil
		}
	}

	alpha := &scriptedProvider{name: "alpha", fn: slow(60*time.Millisecond, "alpha")}
	beta := &scriptedProvider{name: "beta", fn: slow(5*time.Millisecond, "beta")}
	gamma := &scriptedProvider{name: "gamma", fn: slow(25*time.Millisecond, "gamma")}
	mod := &scriptedProvider{name: "judge"}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha, beta, gamma)

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}

	want := []string{"alpha", "beta", "gamma"}
	for _, round := range rec.Rounds {
		for i, res := range round.Results {
			if res.Member != want[i] {
				t.Errorf("round %d slot %d = %s, want %s", round.Round, i, res.Member, want[i])
			}
		}
	}
}

func TestAllMembersFailed(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha", fn: failWith(core.ErrAuth, "no key")}
	beta := &scriptedProvider{name: "beta", fn: failWith(core.ErrRateLimit, "slow down")}
	mod := &scriptedProvider{name: "judge"}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha, beta)

	rec, err := orch.RunDebate(context.Background(), "question")
	if !errors.Is(err, ErrAllMembersFailed) {
		t.Fatalf("error = %v, want ErrAllMembersFailed", err)
	}
	if rec == nil {
		t.Fatal("record not returned alongside the error")
	}
	if rec.Phase != core.PhaseFailed {
		t.Errorf("Phase = %s, want %s", rec.Phase, core.PhaseFailed)
	}
	if len(rec.Rounds) != 1 {
		t.Errorf("got %d rounds, want 1", len(rec.Rounds))
	}
	if mod.calls != 0 {
		t.Errorf("moderator called %d times, want 0", mod.calls)
	}
	for _, wantMsg := range []string{"no key", "slow down"} {
		if !strings.Contains(err.Error(), wantMsg) {
			t.Errorf("error %q does not mention %q", err, wantMsg)
		}
	}
}

func TestSingleSurvivorRunsRound2Alone(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha", fn: respondWith("alpha r1", "alpha r2")}
	beta := &scriptedProvider{name: "beta", fn: failWith(core.ErrTimeout, "deadline exceeded")}
	mod := &scriptedProvider{name: "judge"}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha, beta)

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}
	if rec.Phase != core.PhaseComplete {
		t.Errorf("Phase = %s, want %s", rec.Phase, core.PhaseComplete)
	}

	round2, _ := rec.Round(2)
	if len(round2.Results) != 1 || round2.Results[0].Member != "alpha" {
		t.Fatalf("round 2 slots = %+v, want only alpha", round2.Results)
	}

	prompt := alpha.promptForCall(2)
	if strings.Contains(prompt, "beta") {
		t.Errorf("sole survivor's prompt mentions the failed member:\n%s", prompt)
	}
	if !strings.Contains(prompt, "No other council members") {
		t.Errorf("sole survivor's prompt missing the no-peers note:\n%s", prompt)
	}
}

func TestRound2PromptContainsPeerAnswers(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha", fn: respondWith("use an LRU", "alpha r2")}
	beta := &scriptedProvider{name: "beta", fn: respondWith("use an LFU", "beta r2")}
	mod := &scriptedProvider{name: "judge"}

	orch, roster := testOrchestrator(t, time.Second, mod, alpha, beta)

	if _, err := orch.RunDebate(context.Background(), "Which cache policy?"); err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}

	alphaPrompt := alpha.promptForCall(2)
	if !strings.Contains(alphaPrompt, "Which cache policy?") {
		t.Errorf("round 2 prompt missing the question:\n%s", alphaPrompt)
	}
	if !strings.Contains(alphaPrompt, roster[1].Label()) {
		t.Errorf("round 2 prompt missing peer label %q:\n%s", roster[1].Label(), alphaPrompt)
	}
	if !strings.Contains(alphaPrompt, "use an LFU") {
		t.Errorf("round 2 prompt missing peer answer:\n%s", alphaPrompt)
	}
	if strings.Contains(alphaPrompt, "use an LRU") {
		t.Errorf("round 2 prompt includes the member's own answer:\n%s", alphaPrompt)
	}
}

func TestTimeoutIsolatedPerMember(t *testing.T) {
	stuck := &scriptedProvider{name: "alpha", fn: func(call int, req *provider.Request) (*core.Completion, error) {
		return nil, &provider.Error{Provider: "alpha", Kind: core.ErrTimeout, Message: "context deadline exceeded", Err: context.DeadlineExceeded}
	}}
	fast := &scriptedProvider{name: "beta", fn: respondWith("beta r1", "beta r2")}
	mod := &scriptedProvider{name: "judge"}

	orch, _ := testOrchestrator(t, 30*time.Millisecond, mod, stuck, fast)

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}

	round1, _ := rec.Round(1)
	alphaSlot, _ := round1.Get("alpha")
	if alphaSlot.Failure == nil || alphaSlot.Failure.Kind != core.ErrTimeout {
		t.Errorf("alpha slot = %+v, want timeout failure", alphaSlot)
	}
	betaSlot, _ := round1.Get("beta")
	if !betaSlot.Succeeded() {
		t.Errorf("beta slot = %+v, want success", betaSlot)
	}
}

func TestMockProviderTimesOutUnderDeadline(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register(&provider.Mock{ProviderName: "slowmock", Delay: 500 * time.Millisecond})
	registry.Register(&provider.Mock{ProviderName: "fastmock"})

	members := []core.CouncilMember{
		{Name: "slow", Provider: "slowmock", Model: "mock-v1"},
		{Name: "fast", Provider: "fastmock", Model: "mock-v1"},
	}
	mod := core.CouncilMember{Name: "moderator", Provider: "fastmock", Model: "mock-v1"}

	orch, err := New(registry, members, mod, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}

	round1, _ := rec.Round(1)
	slowSlot, _ := round1.Get("slow")
	if slowSlot.Failure == nil || slowSlot.Failure.Kind != core.ErrTimeout {
		t.Errorf("slow slot = %+v, want timeout failure", slowSlot)
	}
	fastSlot, _ := round1.Get("fast")
	if !fastSlot.Succeeded() {
		t.Errorf("fast slot = %+v, want success", fastSlot)
	}
}

func TestModeratorFailureIsNonFatal(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha", fn: respondWith("alpha r1", "alpha r2")}
	mod := &scriptedProvider{name: "judge", fn: failWith(core.ErrRateLimit, "overloaded")}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha)

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}
	if rec.Phase != core.PhaseComplete {
		t.Errorf("Phase = %s, want %s", rec.Phase, core.PhaseComplete)
	}
	if rec.Moderator.Failure == nil || rec.Moderator.Failure.Kind != core.ErrRateLimit {
		t.Errorf("moderator slot = %+v, want rate_limit failure", rec.Moderator)
	}
}

func TestModeratorPromptUsesLatestAnswers(t *testing.T) {
	// Alpha's rebuttal fails, so the moderator should see its round 1
	// answer instead.
	alpha := &scriptedProvider{name: "alpha", fn: func(call int, req *provider.Request) (*core.Completion, error) {
		if call == 1 {
			return &core.Completion{Text: "alpha original"}, nil
		}
		return nil, &provider.Error{Provider: "alpha", Kind: core.ErrUnknown, Message: "flaked"}
	}}
	beta := &scriptedProvider{name: "beta", fn: respondWith("beta original", "beta revised")}
	mod := &scriptedProvider{name: "judge"}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha, beta)

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}
	if rec.Phase != core.PhaseComplete {
		t.Fatalf("Phase = %s, want %s", rec.Phase, core.PhaseComplete)
	}

	prompt := mod.promptForCall(1)
	if !strings.Contains(prompt, "alpha original") {
		t.Errorf("moderator prompt missing alpha's round 1 fallback:\n%s", prompt)
	}
	if !strings.Contains(prompt, "beta revised") {
		t.Errorf("moderator prompt missing beta's round 2 answer:\n%s", prompt)
	}
	if strings.Contains(prompt, "beta original") {
		t.Errorf("moderator prompt includes a superseded answer:\n%s", prompt)
	}
}

func TestCallbacksFireInOrder(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha"}
	mod := &scriptedProvider{name: "judge"}

	orch, _ := testOrchestrator(t, time.Second, mod, alpha)

	var phases []core.Phase
	var moderated bool
	cb := &Callbacks{
		OnPhase:           func(p core.Phase) { phases = append(phases, p) },
		OnModeratorResult: func(res core.MemberResult) { moderated = true },
	}

	if _, err := orch.RunDebateWithCallbacks(context.Background(), "question", cb); err != nil {
		t.Fatalf("RunDebateWithCallbacks() error: %v", err)
	}

	want := []core.Phase{
		core.PhaseRound1Running, core.PhaseRound1Done,
		core.PhaseRound2Running, core.PhaseRound2Done,
		core.PhaseModerating,
	}
	if len(phases) != len(want) {
		t.Fatalf("got phases %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase[%d] = %s, want %s", i, phases[i], want[i])
		}
	}
	if !moderated {
		t.Error("OnModeratorResult never fired")
	}
}

func TestEmptyQuestionRejected(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha"}
	mod := &scriptedProvider{name: "judge"}
	orch, _ := testOrchestrator(t, time.Second, mod, alpha)

	if _, err := orch.RunDebate(context.Background(), "   "); err == nil {
		t.Fatal("expected an error for a blank question")
	}
	if alpha.calls != 0 {
		t.Errorf("provider called %d times for a blank question", alpha.calls)
	}
}

func TestNewRequiresMembers(t *testing.T) {
	registry := provider.NewRegistry()
	if _, err := New(registry, nil, core.CouncilMember{}, time.Second); err == nil {
		t.Fatal("expected an error for an empty council")
	}
}

func TestUnregisteredProviderFailsThatMemberOnly(t *testing.T) {
	alpha := &scriptedProvider{name: "alpha", fn: respondWith("alpha r1", "alpha r2")}
	mod := &scriptedProvider{name: "judge"}

	registry := provider.NewRegistry()
	registry.Register(alpha)
	registry.Register(mod)

	members := []core.CouncilMember{
		testMember("alpha"),
		{Name: "ghost", Provider: "missing", Model: "m"},
	}
	modMember := core.CouncilMember{Name: "moderator", Provider: "judge", Model: "mod-model"}

	orch, err := New(registry, members, modMember, time.Second)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec, err := orch.RunDebate(context.Background(), "question")
	if err != nil {
		t.Fatalf("RunDebate() error: %v", err)
	}

	round1, _ := rec.Round(1)
	ghostSlot, ok := round1.Get("ghost")
	if !ok {
		t.Fatal("ghost has no round 1 slot")
	}
	if ghostSlot.Failure == nil || !strings.Contains(ghostSlot.Failure.Message, "not registered") {
		t.Errorf("ghost slot = %+v, want a not-registered failure", ghostSlot)
	}
	if !rec.Moderator.Succeeded() {
		t.Errorf("moderator failed: %+v", rec.Moderator.Failure)
	}
}

func TestSnapshotBeforeTerminalPhaseFails(t *testing.T) {
	b := newRecordBuilder("question", []core.CouncilMember{testMember("alpha")})
	if _, err := b.snapshot(); err == nil {
		t.Fatal("snapshot before a terminal phase should fail")
	}

	b.finish(core.PhaseComplete)
	rec, err := b.snapshot()
	if err != nil {
		t.Fatalf("snapshot after finish: %v", err)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set by finish")
	}
}
