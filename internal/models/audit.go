package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionLogout          = "LOGOUT"
	AuditActionRegister        = "REGISTER"
	AuditActionUserCreate      = "USER_CREATE"
	AuditActionUserUpdate      = "USER_UPDATE"
	AuditActionUserDelete      = "USER_DELETE"
	AuditActionPaperGenerate   = "PAPER_GENERATE"
	AuditActionPaperDownload   = "PAPER_DOWNLOAD"
	AuditActionPaperPurge      = "PAPER_PURGE"
	AuditActionPaymentApprove  = "PAYMENT_APPROVE"
	AuditActionPaymentReject   = "PAYMENT_REJECT"
	AuditActionCurriculumWrite = "CURRICULUM_WRITE"
	AuditActionPatternWrite    = "PATTERN_WRITE"
	AuditActionPageWrite       = "PAGE_WRITE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RequestMeta carries the caller details recorded with audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}
