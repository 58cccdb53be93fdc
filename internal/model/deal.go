package model

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Valid deal categories. Mirrors the partner catalog taxonomy.
const (
	CategoryCloud        = "cloud"
	CategoryMarketing    = "marketing"
	CategoryProductivity = "productivity"
	CategoryAnalytics    = "analytics"
	CategoryDevelopment  = "development"
	CategoryDesign       = "design"
)

// Categories lists all valid deal categories.
var Categories = []string{
	CategoryCloud,
	CategoryMarketing,
	CategoryProductivity,
	CategoryAnalytics,
	CategoryDevelopment,
	CategoryDesign,
}

// Deal represents a partner offer in the catalog.
//
// MaxClaims is nil for deals with unlimited capacity. CurrentClaims is only
// ever mutated through the capacity reservation primitive in the deal
// repository; it never decreases except via compensation of a failed
// admission.
type Deal struct {
	ID                string         `db:"id" json:"id"`
	Title             string         `db:"title" json:"title"`
	Description       string         `db:"description" json:"description"`
	Category          string         `db:"category" json:"category"`
	PartnerName       string         `db:"partner_name" json:"partner_name"`
	PartnerLogo       string         `db:"partner_logo" json:"partner_logo"`
	DiscountValue     string         `db:"discount_value" json:"discount_value"`
	EligibilityRules  pq.StringArray `db:"eligibility_rules" json:"eligibility_rules"`
	IsLocked          bool           `db:"is_locked" json:"is_locked"`
	ExpiryDate        *time.Time     `db:"expiry_date" json:"expiry_date,omitempty"`
	WebsiteURL        string         `db:"website_url" json:"website_url"`
	ClaimInstructions string         `db:"claim_instructions" json:"claim_instructions"`
	MaxClaims         *int64         `db:"max_claims" json:"max_claims,omitempty"`
	CurrentClaims     int64          `db:"current_claims" json:"current_claims"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the deal's expiry date has passed. Deals without
// an expiry date never expire. Computed on read, never persisted.
func (d *Deal) IsExpired() bool {
	if d.ExpiryDate == nil {
		return false
	}
	return time.Now().After(*d.ExpiryDate)
}

// IsMaxedOut reports whether the deal has consumed its configured capacity.
// This is a cheap read; the authoritative check is the conditional update in
// the deal repository.
func (d *Deal) IsMaxedOut() bool {
	if d.MaxClaims == nil {
		return false
	}
	return d.CurrentClaims >= *d.MaxClaims
}

// IsClaimable reports whether the deal can currently accept new claims.
func (d *Deal) IsClaimable() bool {
	return !d.IsExpired() && !d.IsMaxedOut()
}

// ValidCategory reports whether category is one of the known catalog
// categories.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if category == c {
			return true
		}
	}
	return false
}

// Validate checks the catalog field constraints before a create or update.
func (d *Deal) Validate() error {
	if n := len(d.Title); n < 5 || n > 100 {
		return fmt.Errorf("title must be between 5 and 100 characters")
	}
	if n := len(d.Description); n < 20 || n > 1000 {
		return fmt.Errorf("description must be between 20 and 1000 characters")
	}
	if !ValidCategory(d.Category) {
		return fmt.Errorf("%q is not a valid category", d.Category)
	}
	if d.PartnerName == "" {
		return fmt.Errorf("partner name is required")
	}
	if d.DiscountValue == "" {
		return fmt.Errorf("discount value is required")
	}
	if len(d.EligibilityRules) == 0 {
		return fmt.Errorf("at least one eligibility rule is required")
	}
	if d.MaxClaims != nil && *d.MaxClaims <= 0 {
		return fmt.Errorf("max claims must be positive when set")
	}
	return nil
}
