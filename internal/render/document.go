package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kapilsaini46/rks/internal/models"
)

// Mode selects which printable view is produced.
type Mode string

const (
	ModePaper     Mode = "PAPER"
	ModeAnswerKey Mode = "ANSWER_KEY"
)

// ParseMode validates a mode string, defaulting to the question paper.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", ModePaper:
		return ModePaper, true
	case ModeAnswerKey:
		return ModeAnswerKey, true
	}
	return "", false
}

// AnswerUnavailable is printed in the answer key for questions without an answer.
const AnswerUnavailable = "Answer not available"

// Match table labels.
const (
	matchHeading     = "Match the Following:"
	matchLeftHeader  = "Column A"
	matchRightHeader = "Column B"
)

// Header is the paper heading block.
type Header struct {
	School       string
	Title        string
	Time         string
	Class        string
	Session      string
	MaxMarks     string
	Subject      string
	Instructions []string
	Caption      string
}

// Option is one rendered option.
type Option struct {
	Label string
	Text  []Segment
}

// MatchRow is one row of a match table. Left rows are lettered and right rows numbered independently.
type MatchRow struct {
	LeftLabel  string
	Left       []Segment
	RightLabel string
	Right      []Segment
}

// MatchTable is the two column layout of a match-the-following question.
type MatchTable struct {
	Heading     string
	LeftHeader  string
	RightHeader string
	Rows        []MatchRow
}

// QuestionView is one rendered question.
type QuestionView struct {
	ID         string
	Number     string
	Type       models.QuestionType
	Text       []Segment
	Marks      string
	Options    []Option
	Columns    int
	Match      *MatchTable
	ImageURL   string
	ImageWidth int
	Answer     []Segment
}

// SectionView is one rendered section.
type SectionView struct {
	Title      string
	TotalMarks string
	Questions  []QuestionView
}

// Document is the deterministic projection of a paper in one mode.
type Document struct {
	Mode     Mode
	Language Language
	Labels   Template
	Header   Header
	Sections []SectionView
	Total    float64
}

// Build projects p into the requested view. Question numbering runs across sections.
func Build(p *models.QuestionPaper, mode Mode) Document {
	lang := LanguageForSubject(p.Subject)
	t := TemplateFor(lang)
	total := p.TotalMarks()

	doc := Document{
		Mode:     mode,
		Language: lang,
		Labels:   t,
		Total:    total,
		Header:   buildHeader(p, lang, t, mode, total),
	}

	counter := 0
	for _, s := range p.Sections {
		sv := SectionView{Title: s.Title, TotalMarks: FormatMarks(s.TotalMarks)}
		for _, q := range s.Questions {
			counter++
			sv.Questions = append(sv.Questions, buildQuestion(q, lang, counter, mode))
		}
		doc.Sections = append(doc.Sections, sv)
	}
	return doc
}

func buildHeader(p *models.QuestionPaper, lang Language, t Template, mode Mode, total float64) Header {
	class := ClassDisplay(lang, p.ClassNum)
	subject := SubjectDisplay(lang, p.Subject)
	h := Header{
		School:   p.SchoolName,
		Title:    p.Title,
		Time:     p.Duration,
		Class:    class,
		Session:  p.Session,
		MaxMarks: FormatMarks(total),
		Subject:  subject,
	}
	if mode == ModeAnswerKey {
		h.Caption = fmt.Sprintf("%s: %s | %s: %s | %s", t.Class, class, t.Subject, subject, p.Title)
		return h
	}
	instructions := p.GeneralInstructions
	if strings.TrimSpace(instructions) == "" {
		instructions = t.DefaultInstructions
	}
	for _, line := range strings.Split(instructions, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			h.Instructions = append(h.Instructions, line)
		}
	}
	return h
}

func buildQuestion(q models.Question, lang Language, n int, mode Mode) QuestionView {
	v := QuestionView{
		ID:     q.ID,
		Number: QuestionLabel(lang, q.CustomNumber, n),
		Type:   q.Type,
		Text:   Segments(q.Text),
		Marks:  "[" + FormatMarks(q.Marks) + "]",
	}
	if mode == ModeAnswerKey {
		answer := strings.TrimSpace(q.Answer)
		if answer == "" {
			answer = AnswerUnavailable
		}
		v.Answer = Segments(answer)
		return v
	}

	v.ImageURL = q.ImageURL
	v.ImageWidth = q.ImageWidth
	if v.ImageURL != "" && v.ImageWidth == 0 {
		v.ImageWidth = models.DefaultImageWidth
	}
	if len(q.Options) > 0 {
		v.Columns = GridColumns(q)
		for i, opt := range q.Options {
			v.Options = append(v.Options, Option{Label: OptionLabel(i), Text: Segments(CleanOptionText(opt))})
		}
	}
	if len(q.MatchPairs) > 0 {
		table := &MatchTable{Heading: matchHeading, LeftHeader: matchLeftHeader, RightHeader: matchRightHeader}
		for i, pair := range q.MatchPairs {
			table.Rows = append(table.Rows, MatchRow{
				LeftLabel:  string(rune('A'+i)) + ".",
				Left:       Segments(pair.Left),
				RightLabel: strconv.Itoa(i+1) + ".",
				Right:      Segments(pair.Right),
			})
		}
		v.Match = table
	}
	return v
}

// FormatMarks prints a mark value without trailing zeros.
func FormatMarks(m float64) string {
	return strconv.FormatFloat(models.Round2(m), 'f', -1, 64)
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// Filename is the download name of an exported view.
func Filename(meta models.PaperMeta, mode Mode) string {
	name := fmt.Sprintf("%s_%s_%s", unsafeFilenameChars.ReplaceAllString(meta.Title, "_"), meta.ClassNum, meta.Subject)
	if mode == ModeAnswerKey {
		name += "_AnswerKey"
	}
	return name + ".pdf"
}
