package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/alienxp03/council/internal/core"
)

// PDFExporter exports session records to PDF format.
type PDFExporter struct{}

// Export writes the session record as PDF.
func (e *PDFExporter) Export(rec *core.SessionRecord, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, e.sanitizeText(rec.Question), "", "C", false)
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Session Information")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	id := rec.ID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	e.addMetadataRow(pdf, "ID:", id)
	e.addMetadataRow(pdf, "Phase:", string(rec.Phase))
	e.addMetadataRow(pdf, "Created:", rec.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if rec.CompletedAt != nil {
		e.addMetadataRow(pdf, "Completed:", rec.CompletedAt.Format("January 2, 2006 at 3:04 PM"))
		e.addMetadataRow(pdf, "Duration:", formatDuration(rec.CreatedAt, *rec.CompletedAt))
	}
	pdf.Ln(5)

	// Council section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Council")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 9)
	for _, m := range rec.Members {
		pdf.Cell(0, 5, fmt.Sprintf("%s (%s, %s)", m.Name, m.Provider, m.Model))
		pdf.Ln(5)
	}
	pdf.Ln(5)

	// Rounds
	for _, round := range rec.Rounds {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, roundTitle(round.Round))
		pdf.Ln(8)

		for _, res := range round.Results {
			if pdf.GetY() > 250 {
				pdf.AddPage()
			}

			if res.Succeeded() {
				pdf.SetFillColor(200, 230, 255) // Light blue
			} else {
				pdf.SetFillColor(255, 200, 200) // Light red
			}

			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(0, 7, res.Member, "", 1, "", true, 0, "")

			pdf.SetFont("Arial", "", 9)
			pdf.SetFillColor(255, 255, 255)
			if res.Succeeded() {
				pdf.MultiCell(0, 5, e.sanitizeText(res.Completion.Text), "", "", false)
			} else {
				pdf.SetFont("Arial", "I", 9)
				pdf.MultiCell(0, 5, fmt.Sprintf("Failed (%s): %s", res.Failure.Kind, e.sanitizeText(res.Failure.Message)), "", "", false)
			}
			pdf.Ln(5)
		}
	}

	// Moderator synthesis
	if pdf.GetY() > 230 {
		pdf.AddPage()
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Moderator Synthesis")
	pdf.Ln(8)

	if rec.Moderator.Succeeded() {
		pdf.SetFillColor(200, 255, 200) // Light green
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Synthesis", "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, e.sanitizeText(rec.Moderator.Completion.Text), "", "", false)
	} else if rec.Moderator.Failure != nil {
		pdf.SetFillColor(255, 200, 200) // Light red
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Synthesis Failed", "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "I", 9)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, e.sanitizeText(rec.Moderator.Failure.Message), "", "", false)
	}

	// Footer
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from council", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// Helper to add a metadata row
func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

// Sanitize text for PDF (remove problematic characters)
func (e *PDFExporter) sanitizeText(text string) string {
	// gofpdf uses Windows-1252 encoding by default
	// Replace common Unicode characters that might cause issues
	replacer := strings.NewReplacer(
		"\u2018", "'", // Left single quote
		"\u2019", "'", // Right single quote
		"\u201C", "\"", // Left double quote
		"\u201D", "\"", // Right double quote
		"\u2013", "-", // En dash
		"\u2014", "--", // Em dash
		"\u2026", "...", // Ellipsis
		"\u2022", "*", // Bullet
		"\u00A0", " ", // Non-breaking space
	)
	return replacer.Replace(text)
}
