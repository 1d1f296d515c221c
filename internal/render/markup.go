package render

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kapilsaini46/rks/internal/models"
)

var enumerationPrefix = regexp.MustCompile(`^(\([a-zA-Z0-9]+\)|[a-zA-Z0-9]+[.):]\s*)+`)

// CleanOptionText strips enumeration markers such as "(a)", "a." or "1:" that generated options
// sometimes carry.
func CleanOptionText(text string) string {
	cleaned := strings.TrimSpace(text)
	for {
		next := strings.TrimSpace(enumerationPrefix.ReplaceAllString(cleaned, ""))
		if next == cleaned {
			return cleaned
		}
		cleaned = next
	}
}

// GridColumns chooses how many columns the options of q are laid out in.
func GridColumns(q models.Question) int {
	if q.Type == models.QuestionTypeAssertionReason {
		return 1
	}
	maxLen := 0
	hasMath := false
	for _, opt := range q.Options {
		cleaned := CleanOptionText(opt)
		if n := utf8.RuneCountInString(cleaned); n > maxLen {
			maxLen = n
		}
		if strings.Contains(opt, "$") {
			hasMath = true
		}
	}
	narrow, medium := 25, 45
	if hasMath {
		narrow, medium = 45, 80
	}
	switch {
	case maxLen < narrow:
		return 4
	case maxLen < medium:
		return 2
	default:
		return 1
	}
}

// SegmentKind classifies a run of text.
type SegmentKind string

const (
	SegmentText      SegmentKind = "text"
	SegmentMath      SegmentKind = "math"
	SegmentMalformed SegmentKind = "malformed"
)

// Segment is a run of question text. Math segments keep their "$" delimiters in Raw so they display
// verbatim until the client typesetter takes over.
type Segment struct {
	Kind SegmentKind `json:"kind"`
	Raw  string      `json:"raw"`
	Expr string      `json:"expr,omitempty"`
}

// Segments splits text on "$" delimiters. An unclosed or empty expression is returned as malformed
// raw text.
func Segments(text string) []Segment {
	var out []Segment
	rest := text
	for rest != "" {
		open := strings.IndexByte(rest, '$')
		if open < 0 {
			out = append(out, Segment{Kind: SegmentText, Raw: rest})
			break
		}
		if open > 0 {
			out = append(out, Segment{Kind: SegmentText, Raw: rest[:open]})
		}
		tail := rest[open+1:]
		end := strings.IndexByte(tail, '$')
		if end < 0 {
			out = append(out, Segment{Kind: SegmentMalformed, Raw: rest[open:]})
			break
		}
		expr := tail[:end]
		raw := rest[open : open+end+2]
		if strings.TrimSpace(expr) == "" {
			out = append(out, Segment{Kind: SegmentMalformed, Raw: raw})
		} else {
			out = append(out, Segment{Kind: SegmentMath, Raw: raw, Expr: expr})
		}
		rest = tail[end+1:]
	}
	return out
}
