package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const pageContentWidth = 190.0

// PDFExporter renders tables and printable documents with gofpdf.
type PDFExporter struct {
	font string
}

// NewPDFExporter constructs a PDF exporter using the core Arial font.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{font: "Arial"}
}

// Render creates a landscape-free A4 table report.
func (e *PDFExporter) Render(table Table, title string) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("pdf requires at least one column")
	}
	pdf := e.newDocument()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		pdf.SetFont(e.font, "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	widths := columnWidths(table.Columns)
	pdf.SetFont(e.font, "B", 9)
	for i, label := range table.labels() {
		pdf.CellFormat(widths[i], 8, tr(label), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(e.font, "", 8)
	for _, row := range table.Rows {
		for i, value := range table.record(row) {
			pdf.CellFormat(widths[i], 7, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return output(pdf)
}

// Document is a printable letter-style document such as a certificate.
type Document struct {
	Title      string
	Paragraphs []string
	Footer     string
}

// RenderDocument lays out a titled document with wrapped paragraphs.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	if doc.Title == "" && len(doc.Paragraphs) == 0 {
		return nil, fmt.Errorf("document is empty")
	}
	pdf := e.newDocument()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(e.font, "B", 16)
	pdf.CellFormat(0, 12, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont(e.font, "", 11)
	for _, paragraph := range doc.Paragraphs {
		pdf.MultiCell(0, 6, tr(paragraph), "", "J", false)
		pdf.Ln(3)
	}
	if doc.Footer != "" {
		pdf.Ln(10)
		pdf.SetFont(e.font, "I", 9)
		pdf.MultiCell(0, 5, tr(doc.Footer), "", "L", false)
	}
	return output(pdf)
}

func (e *PDFExporter) newDocument() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	return pdf
}

func columnWidths(columns []Column) []float64 {
	total := 0.0
	for _, col := range columns {
		total += weight(col)
	}
	widths := make([]float64, len(columns))
	for i, col := range columns {
		widths[i] = pageContentWidth * weight(col) / total
	}
	return widths
}

func weight(col Column) float64 {
	if col.Width <= 0 {
		return 1
	}
	return col.Width
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
