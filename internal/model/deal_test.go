package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestDealClaimability(t *testing.T) {
	past := timePtr(time.Now().Add(-time.Hour))
	future := timePtr(time.Now().Add(time.Hour))

	tests := []struct {
		name          string
		deal          Deal
		wantExpired   bool
		wantMaxedOut  bool
		wantClaimable bool
	}{
		{
			name:          "no expiry, no cap",
			deal:          Deal{},
			wantClaimable: true,
		},
		{
			name:          "future expiry",
			deal:          Deal{ExpiryDate: future},
			wantClaimable: true,
		},
		{
			name:        "past expiry",
			deal:        Deal{ExpiryDate: past},
			wantExpired: true,
		},
		{
			name:          "under cap",
			deal:          Deal{MaxClaims: int64Ptr(10), CurrentClaims: 9},
			wantClaimable: true,
		},
		{
			name:         "at cap",
			deal:         Deal{MaxClaims: int64Ptr(10), CurrentClaims: 10},
			wantMaxedOut: true,
		},
		{
			name:         "over cap after admin shrank max_claims",
			deal:         Deal{MaxClaims: int64Ptr(5), CurrentClaims: 10},
			wantMaxedOut: true,
		},
		{
			name:          "unlimited ignores counter",
			deal:          Deal{CurrentClaims: 1_000_000},
			wantClaimable: true,
		},
		{
			name:         "expired and maxed",
			deal:         Deal{ExpiryDate: past, MaxClaims: int64Ptr(1), CurrentClaims: 1},
			wantExpired:  true,
			wantMaxedOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantExpired, tt.deal.IsExpired())
			assert.Equal(t, tt.wantMaxedOut, tt.deal.IsMaxedOut())
			assert.Equal(t, tt.wantClaimable, tt.deal.IsClaimable())
		})
	}
}

func validDeal() Deal {
	return Deal{
		Title:            "50% off observability suite",
		Description:      "Half price on the full monitoring bundle for the first year.",
		Category:         CategoryAnalytics,
		PartnerName:      "Grafton Labs",
		DiscountValue:    "50% off",
		EligibilityRules: []string{"startups under 50 employees"},
	}
}

func TestDealValidate(t *testing.T) {
	t.Run("valid deal passes", func(t *testing.T) {
		deal := validDeal()
		require.NoError(t, deal.Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Deal)
		wantErr string
	}{
		{"short title", func(d *Deal) { d.Title = "abc" }, "title"},
		{"long title", func(d *Deal) { d.Title = strings.Repeat("x", 101) }, "title"},
		{"short description", func(d *Deal) { d.Description = "too short" }, "description"},
		{"unknown category", func(d *Deal) { d.Category = "crypto" }, "category"},
		{"missing partner", func(d *Deal) { d.PartnerName = "" }, "partner"},
		{"missing discount", func(d *Deal) { d.DiscountValue = "" }, "discount"},
		{"no eligibility rules", func(d *Deal) { d.EligibilityRules = nil }, "eligibility"},
		{"zero max claims", func(d *Deal) { d.MaxClaims = int64Ptr(0) }, "max claims"},
		{"negative max claims", func(d *Deal) { d.MaxClaims = int64Ptr(-5) }, "max claims"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deal := validDeal()
			tt.mutate(&deal)
			err := deal.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
