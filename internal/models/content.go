package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ContentPage is an admin-editable static page (privacy, terms, refund, about).
type ContentPage struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Content     string    `db:"content" json:"content"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// TicketStatus tracks support ticket progress.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketResolved TicketStatus = "RESOLVED"
	TicketClosed   TicketStatus = "CLOSED"
)

// SupportTicket is a message from a teacher to the admins.
type SupportTicket struct {
	ID        string       `db:"id" json:"id"`
	UserEmail string       `db:"user_email" json:"user_email"`
	Subject   string       `db:"subject" json:"subject"`
	Message   string       `db:"message" json:"message"`
	Status    TicketStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// AttachmentKind distinguishes the two grounding documents of a sample pattern.
type AttachmentKind string

const (
	AttachmentSamplePaper AttachmentKind = "SAMPLE_PAPER"
	AttachmentSyllabus    AttachmentKind = "SYLLABUS"
)

// PatternAttachment points at an uploaded document kept on local storage.
type PatternAttachment struct {
	Kind     AttachmentKind `json:"kind"`
	Name     string         `json:"name"`
	MimeType string         `json:"mime_type"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
}

// PatternAttachments is stored as a JSONB column.
type PatternAttachments []PatternAttachment

// Value implements driver.Valuer.
func (a PatternAttachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *PatternAttachments) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// Find returns the attachment of the given kind.
func (a PatternAttachments) Find(kind AttachmentKind) (PatternAttachment, bool) {
	for _, att := range a {
		if att.Kind == kind {
			return att, true
		}
	}
	return PatternAttachment{}, false
}

// SamplePattern is style guidance for a class and subject, keyed by "<class>_<subject>".
type SamplePattern struct {
	ID          string             `db:"id" json:"id"`
	ClassNum    string             `db:"class_num" json:"class_num"`
	Subject     string             `db:"subject" json:"subject"`
	Content     string             `db:"content" json:"content"`
	Attachments PatternAttachments `db:"attachments" json:"attachments"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// StyleDocument is a grounding document handed to the question bank.
type StyleDocument struct {
	Kind     AttachmentKind `json:"kind"`
	MimeType string         `json:"mime_type"`
	Data     []byte         `json:"-"`
}

// StyleContext steers generated questions toward a sample style and syllabus scope.
type StyleContext struct {
	Text      string          `json:"text"`
	Documents []StyleDocument `json:"documents,omitempty"`
}

// Empty reports whether the context carries nothing.
func (c *StyleContext) Empty() bool {
	return c == nil || (c.Text == "" && len(c.Documents) == 0)
}
