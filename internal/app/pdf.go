package app

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// writeAnswerPDF renders the question, the answer text, and the numbered
// source list as a minimal PDF. Source URLs become clickable links. This is
// intentionally simple and does no real typesetting.
func writeAnswerPDF(res Result, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 7, res.Trace.Question, "", "L", false)
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 11)
	scanner := bufio.NewScanner(strings.NewReader(res.Answer.Text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(res.Answer.Citations) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Sources", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, id := range sortedCitationIDs(res.Answer.Citations) {
			c := res.Answer.Citations[id]
			label := fmt.Sprintf("[%d] ", id)
			if t := strings.TrimSpace(c.Title); t != "" {
				label += t + " "
			}
			pdf.Write(5, label)
			pdf.WriteLinkString(5, c.URL, c.URL)
			pdf.Ln(6)
		}
	}

	if res.Answer.NoEvidence {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, "No retrieved sources back this answer.", "", "L", false)
	}

	return pdf.OutputFileAndClose(outPath)
}
