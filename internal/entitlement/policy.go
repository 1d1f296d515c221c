// Package entitlement decides which paper actions a user's plan permits. It performs no I/O: every
// function works on a snapshot and callers persist any mutation it makes.
package entitlement

import (
	"time"

	"github.com/kapilsaini46/rks/internal/models"
)

// DownloadsPerPaper is the download allowance of a saved paper on a metered plan.
const DownloadsPerPaper = 1

// Unlimited marks an allowance with no upper bound.
const Unlimited = -1

var regenerationLimits = map[models.SubscriptionPlan]int{
	models.PlanFree:         1,
	models.PlanStarter:      1,
	models.PlanProfessional: 2,
	models.PlanPremium:      3,
}

// adminRegenerations matches the premium allowance.
const adminRegenerations = 3

// Summary describes what a user may currently do.
type Summary struct {
	CanGenerate       bool                    `json:"can_generate"`
	Credits           int                     `json:"credits"`
	Plan              models.SubscriptionPlan `json:"plan"`
	MaxRegenerations  int                     `json:"max_regenerations"`
	DownloadsPerPaper int                     `json:"downloads_per_paper"`
	EditAfterDownload bool                    `json:"edit_after_download"`
}

// CanGenerate reports whether the user may compile a new paper. Admins bypass the credit check.
func CanGenerate(u *models.User) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	return u.Credits > 0
}

// MaxRegenerations returns how many times one question may be regenerated. Unknown plans get none.
func MaxRegenerations(u *models.User) int {
	if u == nil {
		return 0
	}
	if u.IsAdmin() {
		return adminRegenerations
	}
	return regenerationLimits[u.SubscriptionPlan]
}

// CanRegenerate reports whether q is still below the user's regeneration bound.
func CanRegenerate(q models.Question, u *models.User) bool {
	return q.RegenerateCount < MaxRegenerations(u)
}

// UnlimitedDownloads reports whether the user is exempt from per-paper download metering.
func UnlimitedDownloads(u *models.User) bool {
	return u.IsAdmin() || (u != nil && u.SubscriptionPlan == models.PlanPremium)
}

// CanDownload reports whether the paper may be downloaded by u.
func CanDownload(p *models.QuestionPaper, u *models.User) bool {
	if p == nil || u == nil {
		return false
	}
	if UnlimitedDownloads(u) {
		return true
	}
	return p.DownloadCount < DownloadsPerPaper
}

// IsEditable reports whether u may still modify the paper. Metered plans lose edit rights after the
// first download.
func IsEditable(p *models.QuestionPaper, u *models.User) bool {
	if p == nil || u == nil {
		return false
	}
	if UnlimitedDownloads(u) {
		return true
	}
	return p.DownloadCount == 0
}

// ApplyExpiry downgrades a lapsed paid plan to FREE, leaving credits untouched.
// It returns true when the user was changed.
func ApplyExpiry(u *models.User, now time.Time) bool {
	if u == nil || u.IsAdmin() || u.SubscriptionPlan == models.PlanFree {
		return false
	}
	if u.SubscriptionExpiryDate == nil || !u.SubscriptionExpiryDate.Before(now) {
		return false
	}
	u.SubscriptionPlan = models.PlanFree
	return true
}

// ConsumeCredit charges one credit for a successful generation. Admins are never charged.
func ConsumeCredit(u *models.User) {
	if u == nil || u.IsAdmin() {
		return
	}
	u.Credits--
}

// ApplyGatewayPayment activates tier after a confirmed checkout: credits reset to the allotment and the
// expiry restarts from now.
func ApplyGatewayPayment(u *models.User, tier models.PricingTier, now time.Time) {
	expiry := now.AddDate(0, 0, tier.ValidityDays)
	u.SubscriptionPlan = tier.Plan
	u.SubscriptionStatus = models.SubscriptionActive
	u.Credits = tier.Papers
	u.SubscriptionExpiryDate = &expiry
}

// ApplyApprovedRequest activates tier after an admin approves a manual payment; credits accumulate.
func ApplyApprovedRequest(u *models.User, tier models.PricingTier, now time.Time) {
	days := tier.ApprovalValidityDays
	if days <= 0 {
		days = tier.ValidityDays
	}
	expiry := now.AddDate(0, 0, days)
	u.SubscriptionPlan = tier.Plan
	u.SubscriptionStatus = models.SubscriptionActive
	u.Credits += tier.Papers
	u.SubscriptionExpiryDate = &expiry
}

// Summarize reports the user's current entitlements.
func Summarize(u *models.User) Summary {
	s := Summary{
		CanGenerate:       CanGenerate(u),
		MaxRegenerations:  MaxRegenerations(u),
		DownloadsPerPaper: DownloadsPerPaper,
	}
	if u != nil {
		s.Credits = u.Credits
		s.Plan = u.SubscriptionPlan
	}
	if UnlimitedDownloads(u) {
		s.DownloadsPerPaper = Unlimited
		s.EditAfterDownload = true
	}
	return s
}
