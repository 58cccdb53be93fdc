package model

import (
	"time"
)

// Claim statuses. A claim starts pending and moves to exactly one of the
// terminal states; approved and rejected are reached through the review
// workflow, expired through the background sweep.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusExpired  = "expired"
)

// MaxNotesLength bounds the free-text notes stored on a claim.
const MaxNotesLength = 500

// Claim represents a user's request to redeem a deal.
type Claim struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	DealID     string     `db:"deal_id" json:"deal_id"`
	Status     string     `db:"status" json:"status"`
	ClaimedAt  time.Time  `db:"claimed_at" json:"claimed_at"`
	ApprovedAt *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectedAt *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	Notes      string     `db:"notes" json:"notes"`
	ClaimCode  string     `db:"claim_code" json:"claim_code"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ValidStatus reports whether status is a known claim status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// TerminalStatus reports whether status is terminal. Only pending claims may
// transition.
func TerminalStatus(status string) bool {
	return ValidStatus(status) && status != StatusPending
}
