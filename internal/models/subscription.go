package models

import "time"

// PricingTier describes one purchasable plan.
type PricingTier struct {
	Plan                 SubscriptionPlan `yaml:"plan" json:"plan"`
	Label                string           `yaml:"label" json:"label"`
	Price                int              `yaml:"price" json:"price"`
	Papers               int              `yaml:"papers" json:"papers"`
	ValidityDays         int              `yaml:"validity_days" json:"validity_days"`
	ApprovalValidityDays int              `yaml:"approval_validity_days" json:"approval_validity_days"`
}

// PaymentRequest records a plan purchase, either a gateway callback or a manual proof upload.
type PaymentRequest struct {
	ID        string             `db:"id" json:"id"`
	UserEmail string             `db:"user_email" json:"user_email"`
	Plan      SubscriptionPlan   `db:"plan" json:"plan"`
	Amount    int                `db:"amount" json:"amount"`
	ProofURL  string             `db:"proof_url" json:"proof_url"`
	Status    SubscriptionStatus `db:"status" json:"status"`
	Date      time.Time          `db:"date" json:"date"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}
