package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/fitsgate/internal/rules"
)

// PDFOptions tunes the rendered acceptance PDF.
type PDFOptions struct {
	Language Language
	// ManifestHash, when set, is printed and embedded as a QR code on the
	// final page.
	ManifestHash string
}

// SaveAcceptancePDF renders the given acceptance report into a PDF document.
func SaveAcceptancePDF(rep rules.AcceptanceReport, out string, opts PDFOptions) error {
	tr := NewTranslator(opts.Language)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(tr.T("report.title"), true)
	pdf.SetAuthor("fitsctl", false)
	pdf.SetCreator("fitsctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, tr.T("report.title"))
	addSummarySection(pdf, tr, rep)
	addGateMatrixSection(pdf, tr, rep.GateMatrix)
	addFindingsSection(pdf, tr, rep.Findings)
	if opts.ManifestHash != "" {
		addManifestSection(pdf, tr, opts.ManifestHash)
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, tr Translator, rep rules.AcceptanceReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.summary"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: tr.T("summary.total"), value: strconv.Itoa(rep.Summary.Total)},
		{label: tr.T("summary.errors"), value: strconv.Itoa(rep.Summary.Errors)},
		{label: tr.T("summary.warnings"), value: strconv.Itoa(rep.Summary.Warnings)},
		{label: tr.T("summary.overall"), value: passLabel(tr, rep.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addGateMatrixSection(pdf *gofpdf.Fpdf, tr Translator, rows []rules.GateResult) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.gateMatrix"))
	pdf.Ln(9)

	headers := []string{
		tr.T("column.stage"), tr.T("column.severity"), tr.T("column.rule"),
		tr.T("column.name"), tr.T("column.pass"), tr.T("column.findings"),
	}
	widths := []float64{28, 22, 36, 68, 18, 18}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			stageLabel(tr, row.Stage),
			severityLabel(tr, row.Severity),
			row.RuleId,
			emptyFallback(row.Name, "-"),
			passLabel(tr, row.Pass),
			strconv.Itoa(row.Findings),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, tr Translator, findings []rules.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.findings"))
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr.T("findings.none"), "", "L", false)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(tr, d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		if len(d.Refs) > 0 {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, "Refs: "+strings.Join(d.Refs, ", "), "", "L", false)
		}

		pdf.Ln(2)
	}
}

func addManifestSection(pdf *gofpdf.Fpdf, tr Translator, hash string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.manifest"))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 4, tr.T("manifest.hash")+": "+hash, "", "L", false)
	png, err := ManifestHashToQR(hash, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("manifest-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("manifest-qr", pdf.GetX(), pdf.GetY()+2, 40, 40, false, opts, 0, "")
	pdf.Ln(46)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(tr Translator, pass bool) string {
	if pass {
		return tr.T("label.pass")
	}
	return tr.T("label.fail")
}

func stageLabel(tr Translator, stage rules.RuleStage) string {
	switch stage {
	case rules.StageStructure:
		return tr.T("stage.structure")
	case rules.StageHeader:
		return tr.T("stage.header")
	case rules.StageSchema:
		return tr.T("stage.schema")
	case rules.StageData:
		return tr.T("stage.data")
	default:
		if s := strings.TrimSpace(string(stage)); s != "" {
			return s
		}
		return "-"
	}
}

func severityLabel(tr Translator, sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return tr.T("label.unknown")
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d rules.Diagnostic) string {
	parts := make([]string, 0, 5)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.File != "" {
		parts = append(parts, d.File)
	}
	parts = append(parts, fmt.Sprintf("HDU %d", d.Hdu))
	if d.Offset != "" {
		parts = append(parts, "Offset "+d.Offset)
	}
	if d.Keyword != "" {
		parts = append(parts, "Keyword "+d.Keyword)
	}
	return strings.Join(parts, " | ")
}
