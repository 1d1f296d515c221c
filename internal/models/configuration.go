package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Config document keys.
const (
	ConfigKeyCurriculum    = "curriculum"
	ConfigKeyQuestionTypes = "qtypes"
)

// ConfigDocument is a whole JSON document stored under a fixed key.
type ConfigDocument struct {
	Key       string         `db:"key" json:"key"`
	Value     types.JSONText `db:"value" json:"value"`
	UpdatedBy *string        `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ClassSubjects is one class row of the curriculum in display order.
type ClassSubjects struct {
	Class    string   `json:"class" yaml:"class"`
	Subjects []string `json:"subjects" yaml:"subjects"`
}

// AdminOverview is the admin console summary.
type AdminOverview struct {
	Users           int       `json:"users"`
	Teachers        int       `json:"teachers"`
	Papers          int       `json:"papers"`
	PendingPayments int       `json:"pending_payments"`
	OpenTickets     int       `json:"open_tickets"`
	GeneratedAt     time.Time `json:"generated_at"`
}
