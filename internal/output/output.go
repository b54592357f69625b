// Package output renders session records for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/council/internal/core"
)

// Mode selects the rendering format.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// Render writes the session record in the given mode.
func Render(w io.Writer, rec *core.SessionRecord, mode Mode) error {
	switch mode {
	case ModeText, "":
		return renderText(w, rec)
	case ModeJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rec)
	default:
		return fmt.Errorf("unsupported output mode: %s", mode)
	}
}

func renderText(w io.Writer, rec *core.SessionRecord) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\nQuestion: %s\n", rec.Question))
	sb.WriteString(fmt.Sprintf("Session:  %s\n", rec.ID))
	sb.WriteString(strings.Repeat("═", 60) + "\n")

	for _, round := range rec.Rounds {
		sb.WriteString(fmt.Sprintf("\nRound %d\n", round.Round))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
		for _, res := range round.Results {
			label := memberLabel(rec, res.Member)
			if res.Succeeded() {
				sb.WriteString(fmt.Sprintf("\n[%s]\n", label))
				sb.WriteString(res.Completion.Text + "\n")
			} else {
				sb.WriteString(fmt.Sprintf("\n[%s] FAILED (%s): %s\n", label, res.Failure.Kind, res.Failure.Message))
			}
		}
	}

	sb.WriteString("\n" + strings.Repeat("═", 60) + "\n")
	sb.WriteString("Moderator Synthesis\n")
	sb.WriteString(strings.Repeat("═", 60) + "\n")
	if rec.Moderator.Succeeded() {
		sb.WriteString(rec.Moderator.Completion.Text + "\n")
	} else if rec.Moderator.Failure != nil {
		sb.WriteString(fmt.Sprintf("FAILED (%s): %s\n", rec.Moderator.Failure.Kind, rec.Moderator.Failure.Message))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func memberLabel(rec *core.SessionRecord, name string) string {
	for _, m := range rec.Members {
		if m.Name == name {
			return m.Label()
		}
	}
	return name
}
