package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

// SubscriptionPlan enumerates the sellable plans.
type SubscriptionPlan string

const (
	PlanFree         SubscriptionPlan = "FREE"
	PlanStarter      SubscriptionPlan = "STARTER"
	PlanProfessional SubscriptionPlan = "PROFESSIONAL"
	PlanPremium      SubscriptionPlan = "PREMIUM"
)

// Valid reports whether the plan is one of the known plans.
func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanProfessional, PlanPremium:
		return true
	}
	return false
}

// SubscriptionStatus tracks the payment lifecycle of the current plan.
type SubscriptionStatus string

const (
	SubscriptionNone     SubscriptionStatus = "NONE"
	SubscriptionPending  SubscriptionStatus = "PENDING"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionRejected SubscriptionStatus = "REJECTED"
)

// User represents an application user stored in the users table. Email is the natural key.
type User struct {
	ID                     string             `db:"id" json:"id"`
	Email                  string             `db:"email" json:"email"`
	PasswordHash           string             `db:"password_hash" json:"-"`
	Name                   string             `db:"name" json:"name"`
	Role                   UserRole           `db:"role" json:"role"`
	Credits                int                `db:"credits" json:"credits"`
	SubscriptionPlan       SubscriptionPlan   `db:"subscription_plan" json:"subscription_plan"`
	SubscriptionStatus     SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	SubscriptionExpiryDate *time.Time         `db:"subscription_expiry_date" json:"subscription_expiry_date,omitempty"`
	PaymentProofURL        *string            `db:"payment_proof_url" json:"payment_proof_url,omitempty"`
	SchoolName             string             `db:"school_name" json:"school_name"`
	Mobile                 string             `db:"mobile" json:"mobile"`
	City                   string             `db:"city" json:"city"`
	State                  string             `db:"state" json:"state"`
	LastLogin              *time.Time         `db:"last_login" json:"last_login,omitempty"`
	CreatedAt              time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time          `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the user bypasses quota checks.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Plan     *SubscriptionPlan
	Status   *SubscriptionStatus
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
