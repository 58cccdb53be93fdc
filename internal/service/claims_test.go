package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealhub/dealhub/internal/model"
	"github.com/dealhub/dealhub/internal/repository"
)

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

type testEnv struct {
	deals  *repository.MemoryDealStore
	claims *repository.MemoryClaimStore
	svc    *ClaimService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	deals := repository.NewMemoryDealStore()
	claims := repository.NewMemoryClaimStore(deals)
	return &testEnv{
		deals:  deals,
		claims: claims,
		svc:    NewClaimService(deals, claims, nil),
	}
}

func (e *testEnv) seedDeal(t *testing.T, mutate func(*model.Deal)) *model.Deal {
	t.Helper()
	deal := &model.Deal{
		ID:               uuid.NewString(),
		Title:            "Free tier upgrade for a year",
		Description:      "Twelve months of the growth plan at no charge.",
		Category:         model.CategoryCloud,
		PartnerName:      "Nimbus Cloud",
		DiscountValue:    "100% off",
		EligibilityRules: []string{"new customers"},
	}
	if mutate != nil {
		mutate(deal)
	}
	require.NoError(t, e.deals.Create(context.Background(), deal))
	return deal
}

func user(id string) Identity {
	return Identity{UserID: id, Verified: true}
}

func TestSubmitClaimCreatesPendingClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, func(d *model.Deal) { d.MaxClaims = int64Ptr(5) })

	before := time.Now()
	claim, outcome, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, model.StatusPending, claim.Status)
	assert.Equal(t, "alice", claim.UserID)
	assert.Equal(t, deal.ID, claim.DealID)
	assert.False(t, claim.ClaimedAt.Before(before))
	assert.Nil(t, claim.ApprovedAt)
	assert.Nil(t, claim.RejectedAt)

	updated, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.CurrentClaims)
}

func TestSubmitClaimDealNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.SubmitClaim(context.Background(), user("alice"), "no-such-deal")
	require.ErrorIs(t, err, repository.ErrDealNotFound)
}

func TestSubmitClaimLockedDealGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, func(d *model.Deal) {
		d.IsLocked = true
		d.MaxClaims = int64Ptr(5)
	})

	_, _, err := env.svc.SubmitClaim(ctx, Identity{UserID: "bob", Verified: false}, deal.ID)
	require.ErrorIs(t, err, ErrVerificationRequired)

	// No capacity mutation and no ledger insert happened.
	after, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.CurrentClaims)

	existing, err := env.claims.FindByUserAndDeal(ctx, "bob", deal.ID)
	require.NoError(t, err)
	assert.Nil(t, existing)

	// A verified user passes the gate.
	_, outcome, err := env.svc.SubmitClaim(ctx, user("carol"), deal.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)
}

func TestSubmitClaimExpiredDeal(t *testing.T) {
	env := newTestEnv(t)
	deal := env.seedDeal(t, func(d *model.Deal) {
		d.ExpiryDate = timePtr(time.Now().Add(-time.Minute))
	})

	_, _, err := env.svc.SubmitClaim(context.Background(), user("alice"), deal.ID)
	require.ErrorIs(t, err, ErrNotClaimable)
}

func TestSubmitClaimIdempotentResubmission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, func(d *model.Deal) { d.MaxClaims = int64Ptr(5) })

	first, outcome, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)

	second, outcome, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, outcome)
	assert.Equal(t, first.ID, second.ID)

	// Resubmission consumed no additional capacity.
	after, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.CurrentClaims)
}

func TestSubmitClaimCapacityExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, func(d *model.Deal) { d.MaxClaims = int64Ptr(1) })

	_, _, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	_, _, err = env.svc.SubmitClaim(ctx, user("bob"), deal.ID)
	require.Error(t, err)
	// The stale cheap read reports NotClaimable; either signal is a
	// capacity rejection, but with a fresh read it must be NotClaimable
	// here since current_claims already equals max_claims.
	require.ErrorIs(t, err, ErrNotClaimable)

	after, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.CurrentClaims)
}

func TestSubmitClaimConcurrentRace(t *testing.T) {
	const maxClaims = 10
	const callers = 60

	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, func(d *model.Deal) { d.MaxClaims = int64Ptr(maxClaims) })

	var wg sync.WaitGroup
	outcomes := make(chan error, callers)

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			_, _, err := env.svc.SubmitClaim(ctx, user(uuid.NewString()), deal.ID)
			outcomes <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(outcomes)

	var admitted, rejected int
	for err := range outcomes {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, repository.ErrCapacityExhausted), errors.Is(err, ErrNotClaimable):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, maxClaims, admitted)
	assert.Equal(t, callers-maxClaims, rejected)

	after, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(maxClaims), after.CurrentClaims)

	_, total, err := env.claims.List(ctx, repository.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(maxClaims), total)
}

// racingClaimStore simulates losing the insert race: a rival claim for the
// same pair lands between the controller's duplicate pre-check and its own
// insert. The rival bypasses capacity reservation, so a correctly
// compensated counter returns to its starting value.
type racingClaimStore struct {
	*repository.MemoryClaimStore
	raced bool
	rival *model.Claim
}

func (s *racingClaimStore) Create(ctx context.Context, claim *model.Claim) error {
	if !s.raced {
		s.raced = true
		s.rival = &model.Claim{
			ID:     uuid.NewString(),
			UserID: claim.UserID,
			DealID: claim.DealID,
		}
		if err := s.MemoryClaimStore.Create(ctx, s.rival); err != nil {
			return err
		}
	}
	return s.MemoryClaimStore.Create(ctx, claim)
}

func TestSubmitClaimDuplicateRaceCompensatesCapacity(t *testing.T) {
	deals := repository.NewMemoryDealStore()
	claims := &racingClaimStore{MemoryClaimStore: repository.NewMemoryClaimStore(deals)}
	svc := NewClaimService(deals, claims, nil)
	ctx := context.Background()

	deal := &model.Deal{
		ID:               uuid.NewString(),
		Title:            "Race condition special",
		Description:      "Deal exercised by two requests for the same pair.",
		Category:         model.CategoryDevelopment,
		PartnerName:      "Hexley",
		DiscountValue:    "20% off",
		EligibilityRules: []string{"anyone"},
		MaxClaims:        int64Ptr(10),
	}
	require.NoError(t, deals.Create(ctx, deal))

	claim, outcome, err := svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	// The rival's claim comes back, normalized to AlreadyClaimed.
	assert.Equal(t, OutcomeAlreadyClaimed, outcome)
	assert.Equal(t, claims.rival.ID, claim.ID)

	// The controller's own reservation was released.
	after, err := deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.CurrentClaims)

	// Exactly one claim exists for the pair.
	_, total, err := claims.List(ctx, repository.ClaimFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestApproveClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, nil)

	claim, _, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	approved, err := env.svc.ApproveClaim(ctx, "admin-1", claim.ID, "X1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, "X1", approved.ClaimCode)
	require.NotNil(t, approved.ApprovedAt)
	assert.Nil(t, approved.RejectedAt)
}

func TestRejectClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, nil)

	claim, _, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	rejected, err := env.svc.RejectClaim(ctx, "admin-1", claim.ID, "duplicate account")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, "duplicate account", rejected.Notes)
	require.NotNil(t, rejected.RejectedAt)
	assert.Nil(t, rejected.ApprovedAt)
}

func TestRejectClaimReasonTooLong(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, nil)

	claim, _, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	long := make([]byte, model.MaxNotesLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = env.svc.RejectClaim(ctx, "admin-1", claim.ID, string(long))
	require.ErrorIs(t, err, ErrNotesTooLong)
}

func TestTransitionExclusivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, nil)

	claim, _, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	approved, err := env.svc.ApproveClaim(ctx, "admin-1", claim.ID, "X1")
	require.NoError(t, err)
	firstApprovedAt := *approved.ApprovedAt

	// A decided claim can be neither rejected nor re-approved.
	_, err = env.svc.RejectClaim(ctx, "admin-1", claim.ID, "never mind")
	require.ErrorIs(t, err, repository.ErrInvalidTransition)

	_, err = env.svc.ApproveClaim(ctx, "admin-1", claim.ID, "X2")
	require.ErrorIs(t, err, repository.ErrInvalidTransition)

	// The audit timestamp and code were set exactly once.
	final, err := env.claims.Get(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, final.Status)
	assert.Equal(t, "X1", final.ClaimCode)
	assert.Equal(t, firstApprovedAt, *final.ApprovedAt)
	assert.Nil(t, final.RejectedAt)
}

func TestReviewUnknownClaim(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ApproveClaim(context.Background(), "admin-1", "no-such-claim", "")
	require.ErrorIs(t, err, repository.ErrClaimNotFound)
}

func TestGetClaimAccessControl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, nil)

	claim, _, err := env.svc.SubmitClaim(ctx, user("alice"), deal.ID)
	require.NoError(t, err)

	// Owner can read.
	got, err := env.svc.GetClaim(ctx, user("alice"), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, got.ID)

	// Strangers cannot.
	_, err = env.svc.GetClaim(ctx, user("mallory"), claim.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)

	// Admins can.
	_, err = env.svc.GetClaim(ctx, Identity{UserID: "root", Role: "admin"}, claim.ID)
	require.NoError(t, err)
}

func TestExampleScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	deal := env.seedDeal(t, func(d *model.Deal) { d.MaxClaims = int64Ptr(1) })

	// User A claims the only unit.
	claimA, outcome, err := env.svc.SubmitClaim(ctx, user("user-a"), deal.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)

	afterA, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), afterA.CurrentClaims)

	// User B finds the deal full.
	_, _, err = env.svc.SubmitClaim(ctx, user("user-b"), deal.ID)
	require.Error(t, err)

	afterB, err := env.deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), afterB.CurrentClaims)

	// Admin approves A's claim with a code.
	approved, err := env.svc.ApproveClaim(ctx, "admin-1", claimA.ID, "X1")
	require.NoError(t, err)
	require.Equal(t, model.StatusApproved, approved.Status)
	require.Equal(t, "X1", approved.ClaimCode)
	require.NotNil(t, approved.ApprovedAt)

	// A later reject attempt fails.
	_, err = env.svc.RejectClaim(ctx, "admin-1", claimA.ID, "changed my mind")
	require.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestListClaimsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dealA := env.seedDeal(t, nil)
	dealB := env.seedDeal(t, func(d *model.Deal) { d.Title = "Second partner offer" })

	claimA, _, err := env.svc.SubmitClaim(ctx, user("alice"), dealA.ID)
	require.NoError(t, err)
	_, _, err = env.svc.SubmitClaim(ctx, user("alice"), dealB.ID)
	require.NoError(t, err)
	_, _, err = env.svc.SubmitClaim(ctx, user("bob"), dealA.ID)
	require.NoError(t, err)

	_, err = env.svc.ApproveClaim(ctx, "admin-1", claimA.ID, "")
	require.NoError(t, err)

	byUser, total, err := env.svc.ListClaims(ctx, repository.ClaimFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, byUser, 2)

	pending, total, err := env.svc.ListClaims(ctx, repository.ClaimFilter{Status: model.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, c := range pending {
		assert.Equal(t, model.StatusPending, c.Status)
	}

	paged, total, err := env.svc.ListClaims(ctx, repository.ClaimFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, paged, 2)
}
