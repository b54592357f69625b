package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/council/internal/core"
)

// MarkdownExporter exports session records to Markdown format.
type MarkdownExporter struct{}

// Export writes the session record as Markdown.
func (e *MarkdownExporter) Export(rec *core.SessionRecord, w io.Writer) error {
	var sb strings.Builder

	// Title
	sb.WriteString(fmt.Sprintf("# %s\n\n", rec.Question))

	// Metadata
	sb.WriteString("## Session Information\n\n")
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", rec.ID))
	sb.WriteString(fmt.Sprintf("- **Phase:** %s\n", rec.Phase))
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", rec.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	if rec.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("- **Completed:** %s\n", rec.CompletedAt.Format("January 2, 2006 at 3:04 PM")))
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", formatDuration(rec.CreatedAt, *rec.CompletedAt)))
	}
	sb.WriteString("\n")

	// Council
	sb.WriteString("## Council\n\n")
	for _, m := range rec.Members {
		sb.WriteString(fmt.Sprintf("- **%s** (%s, %s)\n", m.Name, m.Provider, m.Model))
	}
	sb.WriteString("\n")

	// Rounds
	for _, round := range rec.Rounds {
		sb.WriteString(fmt.Sprintf("## %s\n\n", roundTitle(round.Round)))
		for _, res := range round.Results {
			sb.WriteString(fmt.Sprintf("### %s\n\n", res.Member))
			if res.Succeeded() {
				sb.WriteString(res.Completion.Text)
				sb.WriteString("\n\n")
			} else {
				sb.WriteString(fmt.Sprintf("*Failed (%s): %s*\n\n", res.Failure.Kind, res.Failure.Message))
			}
		}
		sb.WriteString("---\n\n")
	}

	// Moderator synthesis
	sb.WriteString("## Moderator Synthesis\n\n")
	if rec.Moderator.Succeeded() {
		sb.WriteString(rec.Moderator.Completion.Text)
		sb.WriteString("\n\n")
	} else if rec.Moderator.Failure != nil {
		sb.WriteString(fmt.Sprintf("*Failed (%s): %s*\n\n", rec.Moderator.Failure.Kind, rec.Moderator.Failure.Message))
	} else {
		sb.WriteString("*No synthesis recorded.*\n\n")
	}

	// Footer
	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from council*\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}
