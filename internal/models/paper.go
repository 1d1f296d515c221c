package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// QuestionType is the display label of a question format. Admins may add labels beyond the defaults.
type QuestionType string

const (
	QuestionTypeMCQ             QuestionType = "Multiple Choice"
	QuestionTypeAssertionReason QuestionType = "Assertion-Reason"
	QuestionTypeMatch           QuestionType = "Match the Following"
	QuestionTypeVSA             QuestionType = "Very Short Answer"
	QuestionTypeSA              QuestionType = "Short Answer"
	QuestionTypeLA              QuestionType = "Long Answer"
	QuestionTypeNumerical       QuestionType = "Numerical"
	QuestionTypeCaseStudy       QuestionType = "Case Study"
	QuestionTypeParagraph       QuestionType = "Paragraph-based"
)

// DefaultImageWidth is the width percentage given to newly attached images.
const DefaultImageWidth = 50

// MatchPair is one row of a match-the-following question.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is a single item on a paper.
type Question struct {
	ID              string       `json:"id"`
	Type            QuestionType `json:"type"`
	Text            string       `json:"text"`
	Marks           float64      `json:"marks"`
	Options         []string     `json:"options"`
	MatchPairs      []MatchPair  `json:"match_pairs"`
	Answer          string       `json:"answer,omitempty"`
	ImageURL        string       `json:"image_url,omitempty"`
	ImageWidth      int          `json:"image_width,omitempty"`
	ImagePrompt     string       `json:"image_prompt,omitempty"`
	Topic           string       `json:"topic"`
	CustomNumber    string       `json:"custom_number,omitempty"`
	RegenerateCount int          `json:"regenerate_count"`
}

// Section groups questions under a heading. TotalMarks is derived from the questions.
type Section struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Questions  []Question `json:"questions"`
	TotalMarks float64    `json:"total_marks"`
}

// Round2 rounds to two decimals so repeated mark edits do not accumulate float drift.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SumMarks totals the marks of a question list.
func SumMarks(questions []Question) float64 {
	var total float64
	for _, q := range questions {
		total += q.Marks
	}
	return Round2(total)
}

// Sections is stored as a JSONB column.
type Sections []Section

// Value implements driver.Valuer.
func (s Sections) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Sections) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// PaperMeta is the printable header information of a paper.
type PaperMeta struct {
	Title               string  `db:"title" json:"title"`
	SchoolName          string  `db:"school_name" json:"school_name"`
	ClassNum            string  `db:"class_num" json:"class_num"`
	Subject             string  `db:"subject" json:"subject"`
	Session             string  `db:"session" json:"session"`
	Duration            string  `db:"duration" json:"duration"`
	MaxMarks            float64 `db:"max_marks" json:"max_marks"`
	GeneralInstructions string  `db:"general_instructions" json:"general_instructions"`
}

// QuestionPaper is the persisted paper aggregate.
type QuestionPaper struct {
	ID string `db:"id" json:"id"`
	PaperMeta
	Sections         Sections  `db:"sections" json:"sections"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	CreatedBy        string    `db:"created_by" json:"created_by"`
	VisibleToTeacher bool      `db:"visible_to_teacher" json:"visible_to_teacher"`
	VisibleToAdmin   bool      `db:"visible_to_admin" json:"visible_to_admin"`
	EditCount        int       `db:"edit_count" json:"edit_count"`
	DownloadCount    int       `db:"download_count" json:"download_count"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// TotalMarks is the effective total of the paper, the rounded sum of section totals.
func (p *QuestionPaper) TotalMarks() float64 {
	var total float64
	for _, s := range p.Sections {
		total += s.TotalMarks
	}
	return Round2(total)
}

// BlueprintItem requests one section of generated questions.
type BlueprintItem struct {
	ID    string       `json:"id"`
	Topic string       `json:"topic" validate:"required"`
	Type  QuestionType `json:"type" validate:"required"`
	Count int          `json:"count" validate:"required,min=1,max=50"`
	Marks float64      `json:"marks" validate:"required,gt=0"`
}

// Audience identifies who a paper is hidden from.
type Audience string

const (
	AudienceTeacher Audience = "TEACHER"
	AudienceAdmin   Audience = "ADMIN"
)

// Visibility summarises the two independent soft-delete flags.
type Visibility string

const (
	VisibilityVisible         Visibility = "VISIBLE"
	VisibilityHiddenFromOwner Visibility = "HIDDEN_FROM_OWNER"
	VisibilityHiddenFromAdmin Visibility = "HIDDEN_FROM_ADMIN"
	VisibilityHidden          Visibility = "HIDDEN"
)

// Visibility derives the combined state of the paper's flags.
func (p *QuestionPaper) Visibility() Visibility {
	switch {
	case p.VisibleToTeacher && p.VisibleToAdmin:
		return VisibilityVisible
	case !p.VisibleToTeacher && p.VisibleToAdmin:
		return VisibilityHiddenFromOwner
	case p.VisibleToTeacher && !p.VisibleToAdmin:
		return VisibilityHiddenFromAdmin
	default:
		return VisibilityHidden
	}
}

// PaperFilter narrows paper listings.
type PaperFilter struct {
	CreatedBy     string
	ClassNum      string
	Subject       string
	VisibleTo     Audience
	AdminAuthored bool
	Page          int
	PageSize      int
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json source %T", src)
	}
}
