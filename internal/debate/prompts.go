package debate

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/alienxp03/council/internal/core"
	"github.com/alienxp03/council/internal/provider"
)

// Role system prompts, one per debate stage.
const (
	round1System = "You are a council member. Provide a direct, opinionated answer. " +
		"Be concise, practical, and avoid hedging unless needed."

	round2System = "You are a council member in a debate. Critique other responses, identify " +
		"weaknesses, and provide your improved stance. Avoid repeating your round 1 answer."

	moderatorSystem = "You are the council moderator. Synthesize a final answer that resolves " +
		"disagreements, highlights tradeoffs, and ends with clear recommendations."
)

const round2PromptTemplate = `User question:
{{.Question}}

{{if .Peers}}Other council responses:
{{range .Peers}}
--- {{.Label}} ---
{{.Text}}
{{end}}{{else}}No other council members produced a response this round.
{{end}}
Critique the other views where they exist, identify weaknesses, and provide your rebuttal and improved answer.`

const moderatorPromptTemplate = `User question:
{{.Question}}

Council answers:
{{range .Answers}}
--- {{.Label}} ---
{{.Text}}
{{end}}
Synthesize these views into one balanced recommendation. Resolve disagreements, highlight tradeoffs, and end with clear recommendations.`

var (
	round2Tmpl    = template.Must(template.New("round2").Parse(round2PromptTemplate))
	moderatorTmpl = template.Must(template.New("moderator").Parse(moderatorPromptTemplate))
)

// labeledAnswer pairs a member identity with one of its answers for
// embedding into a later-stage prompt.
type labeledAnswer struct {
	Label string
	Text  string
}

// promptAssembler builds the round-specific provider requests for one
// session.
type promptAssembler struct {
	question string
}

func newPromptAssembler(question string) *promptAssembler {
	return &promptAssembler{question: question}
}

// round1Request is the raw question, identical for all members.
func (a *promptAssembler) round1Request(m core.CouncilMember) *provider.Request {
	return &provider.Request{
		System:  round1System,
		Prompt:  a.question,
		Model:   m.Model,
		Options: m.Options,
	}
}

// round2Request embeds every other member's round-1 answer, labeled by
// identity, in council-configured order. The member's own answer is
// never included.
func (a *promptAssembler) round2Request(m core.CouncilMember, peers []labeledAnswer) (*provider.Request, error) {
	data := struct {
		Question string
		Peers    []labeledAnswer
	}{
		Question: a.question,
		Peers:    peers,
	}

	var buf bytes.Buffer
	if err := round2Tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to build round 2 prompt for %s: %w", m.Name, err)
	}

	return &provider.Request{
		System:  round2System,
		Prompt:  buf.String(),
		Model:   m.Model,
		Options: m.Options,
	}, nil
}

// moderatorRequest embeds each member's final-round answer for
// synthesis.
func (a *promptAssembler) moderatorRequest(mod core.CouncilMember, answers []labeledAnswer) (*provider.Request, error) {
	data := struct {
		Question string
		Answers  []labeledAnswer
	}{
		Question: a.question,
		Answers:  answers,
	}

	var buf bytes.Buffer
	if err := moderatorTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to build moderator prompt: %w", err)
	}

	return &provider.Request{
		System:  moderatorSystem,
		Prompt:  buf.String(),
		Model:   mod.Model,
		Options: mod.Options,
	}, nil
}
