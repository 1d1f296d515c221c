package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/kapilsaini46/rks/internal/render"
)

const (
	pageWidth    = 210.0
	margin       = 15.0
	contentWidth = pageWidth - 2*margin
	numberWidth  = 12.0
	marksWidth   = 14.0
	lineHeight   = 6.0
	unicodeFont  = "paperfont"
)

// ErrUnicodeFontRequired is returned for non-English papers when no UTF-8 font could be loaded. The core
// fonts cannot encode Devanagari or Gurmukhi.
var ErrUnicodeFontRequired = errors.New("pdf export needs a unicode font for this language")

// PaperPDFExporter lays out a rendered paper on A4 pages.
type PaperPDFExporter struct {
	fontPath string
}

// NewPaperPDFExporter constructs an exporter. fontPath optionally points at a UTF-8 TrueType font used
// for non-Latin papers; without it the core Arial font is used.
func NewPaperPDFExporter(fontPath string) *PaperPDFExporter {
	return &PaperPDFExporter{fontPath: fontPath}
}

type pdfWriter struct {
	pdf     *gofpdf.Fpdf
	family  string
	unicode bool
	tr      func(string) string
	images  int
}

func (e *PaperPDFExporter) newWriter() *pdfWriter {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	w := &pdfWriter{pdf: pdf, family: "Arial"}
	if e.fontPath != "" {
		pdf.AddUTF8Font(unicodeFont, "", e.fontPath)
		pdf.AddUTF8Font(unicodeFont, "B", e.fontPath)
		if pdf.Ok() {
			w.family = unicodeFont
			w.unicode = true
		} else {
			pdf.ClearError()
		}
	}
	if w.unicode {
		w.tr = func(s string) string { return s }
	} else {
		w.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	return w
}

func (w *pdfWriter) font(style string, size float64) {
	w.pdf.SetFont(w.family, style, size)
}

func (w *pdfWriter) centered(text string, style string, size float64) {
	w.font(style, size)
	w.pdf.MultiCell(0, lineHeight+1, w.tr(text), "", "C", false)
}

// Render produces the PDF bytes of doc.
func (e *PaperPDFExporter) Render(doc render.Document) ([]byte, error) {
	w := e.newWriter()
	if !w.unicode && doc.Language != render.English {
		return nil, fmt.Errorf("%s paper: %w", doc.Language, ErrUnicodeFontRequired)
	}
	w.pdf.AddPage()

	if doc.Mode == render.ModeAnswerKey {
		w.centered(doc.Labels.AnswerKey, "B", 16)
		w.centered(doc.Header.School, "B", 13)
		w.centered(doc.Header.Caption, "", 10)
	} else {
		w.writeHeader(doc)
	}
	w.pdf.Ln(3)

	for _, section := range doc.Sections {
		w.pdf.Ln(2)
		w.centered(section.Title, "B", 12)
		w.pdf.Ln(1)
		for _, q := range section.Questions {
			w.writeQuestion(doc.Mode, q)
		}
	}

	if err := w.pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := w.pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) writeHeader(doc render.Document) {
	h, l := doc.Header, doc.Labels
	w.centered(h.School, "B", 16)
	w.centered(h.Title, "B", 13)

	w.font("", 10)
	half := contentWidth / 2
	w.pdf.CellFormat(half, lineHeight, w.tr(l.Time+": "+h.Time), "", 0, "L", false, 0, "")
	w.pdf.CellFormat(half, lineHeight, w.tr(l.MaxMarks+": "+h.MaxMarks), "", 1, "R", false, 0, "")
	w.pdf.CellFormat(half, lineHeight, w.tr(l.Class+": "+h.Class), "", 0, "L", false, 0, "")
	w.pdf.CellFormat(half, lineHeight, w.tr(l.Session+": "+h.Session), "", 1, "R", false, 0, "")
	w.pdf.CellFormat(contentWidth, lineHeight, w.tr(l.Subject+": "+h.Subject), "B", 1, "L", false, 0, "")

	if len(h.Instructions) > 0 {
		w.pdf.Ln(2)
		w.font("B", 10)
		w.pdf.CellFormat(contentWidth, lineHeight, w.tr(l.GeneralInstructions), "", 1, "L", false, 0, "")
		w.font("", 9)
		for _, line := range h.Instructions {
			w.pdf.MultiCell(contentWidth, lineHeight-1, w.tr(line), "", "L", false)
		}
	}
}

func (w *pdfWriter) writeQuestion(mode render.Mode, q render.QuestionView) {
	pdf := w.pdf
	textWidth := contentWidth - numberWidth - marksWidth
	y := pdf.GetY()

	w.font("B", 10)
	pdf.CellFormat(numberWidth, lineHeight, w.tr(q.Number), "", 0, "L", false, 0, "")
	pdf.SetXY(margin+numberWidth+textWidth, y)
	pdf.CellFormat(marksWidth, lineHeight, q.Marks, "", 0, "R", false, 0, "")
	pdf.SetXY(margin+numberWidth, y)

	w.font("", 10)
	body := render.PlainText(q.Text)
	if mode == render.ModeAnswerKey {
		body = render.PlainText(q.Answer)
	}
	pdf.MultiCell(textWidth, lineHeight, w.tr(body), "", "L", false)

	if mode == render.ModeAnswerKey {
		pdf.Ln(1)
		return
	}
	w.writeImage(q, textWidth)
	w.writeOptions(q, textWidth)
	w.writeMatch(q, textWidth)
	pdf.Ln(2)
}

func (w *pdfWriter) writeOptions(q render.QuestionView, width float64) {
	if len(q.Options) == 0 {
		return
	}
	cols := q.Columns
	if cols < 1 {
		cols = 1
	}
	colWidth := width / float64(cols)
	for i, opt := range q.Options {
		if i%cols == 0 {
			w.pdf.SetX(margin + numberWidth)
		}
		text := w.tr(opt.Label + " " + render.PlainText(opt.Text))
		if cols == 1 {
			w.pdf.MultiCell(colWidth, lineHeight, text, "", "L", false)
			continue
		}
		ln := 0
		if (i+1)%cols == 0 || i == len(q.Options)-1 {
			ln = 1
		}
		w.pdf.CellFormat(colWidth, lineHeight, text, "", ln, "L", false, 0, "")
	}
}

func (w *pdfWriter) writeMatch(q render.QuestionView, width float64) {
	if q.Match == nil {
		return
	}
	half := width / 2
	w.pdf.SetX(margin + numberWidth)
	w.font("B", 10)
	w.pdf.CellFormat(width, lineHeight, w.tr(q.Match.Heading), "", 1, "L", false, 0, "")
	w.pdf.SetX(margin + numberWidth)
	w.pdf.CellFormat(half, lineHeight, w.tr(q.Match.LeftHeader), "1", 0, "C", false, 0, "")
	w.pdf.CellFormat(half, lineHeight, w.tr(q.Match.RightHeader), "1", 1, "C", false, 0, "")
	w.font("", 10)
	for _, row := range q.Match.Rows {
		w.pdf.SetX(margin + numberWidth)
		w.pdf.CellFormat(half, lineHeight, w.tr(row.LeftLabel+" "+render.PlainText(row.Left)), "1", 0, "L", false, 0, "")
		w.pdf.CellFormat(half, lineHeight, w.tr(row.RightLabel+" "+render.PlainText(row.Right)), "1", 1, "L", false, 0, "")
	}
}

// writeImage embeds inline data URL images. Remote images are not fetched.
func (w *pdfWriter) writeImage(q render.QuestionView, width float64) {
	if !strings.HasPrefix(q.ImageURL, "data:") {
		return
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(q.ImageURL, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return
	}
	var imageType string
	switch strings.TrimSuffix(header, ";base64") {
	case "image/png":
		imageType = "PNG"
	case "image/jpeg", "image/jpg":
		imageType = "JPG"
	case "image/gif":
		imageType = "GIF"
	default:
		return
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return
	}
	w.images++
	name := fmt.Sprintf("img%d", w.images)
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	info := w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if info == nil || !w.pdf.Ok() {
		w.pdf.ClearError()
		return
	}
	percent := q.ImageWidth
	if percent <= 0 {
		percent = 50
	}
	imgWidth := width * float64(percent) / 100
	w.pdf.ImageOptions(name, margin+numberWidth, w.pdf.GetY()+1, imgWidth, 0, true, opts, 0, "")
	w.pdf.Ln(1)
}
