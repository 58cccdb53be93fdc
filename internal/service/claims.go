package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealhub/dealhub/internal/metrics"
	"github.com/dealhub/dealhub/internal/model"
	"github.com/dealhub/dealhub/internal/repository"
)

// Service-level errors. Storage-level sentinels (not found, duplicate,
// exhausted, invalid transition) come from the repository package.
var (
	ErrVerificationRequired = errors.New("deal requires a verified account")
	ErrNotClaimable         = errors.New("deal is no longer available")
	ErrNotAuthorized        = errors.New("not authorized to access this claim")
	ErrNotesTooLong         = errors.New("notes cannot exceed 500 characters")
)

// Outcome distinguishes a fresh admission from an idempotent resubmission.
type Outcome string

const (
	OutcomeCreated        Outcome = "created"
	OutcomeAlreadyClaimed Outcome = "already_claimed"
)

// Identity carries the authorization facts supplied by the upstream auth
// layer. The claim engine never derives these itself.
type Identity struct {
	UserID   string
	Verified bool
	Role     string
}

// IsAdmin reports whether the identity holds the administrative role.
func (id Identity) IsAdmin() bool {
	return id.Role == "admin"
}

// ClaimService is the admission controller and review workflow over the deal
// capacity store and the claim ledger.
type ClaimService struct {
	deals  DealStore
	claims ClaimStore
	logger *zap.Logger
}

// NewClaimService creates a new claim service.
func NewClaimService(deals DealStore, claims ClaimStore, logger *zap.Logger) *ClaimService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimService{
		deals:  deals,
		claims: claims,
		logger: logger,
	}
}

// SubmitClaim admits a claim for (user, deal) or explains why it cannot.
//
// Precondition order matters: existence, verification gating, the cheap
// claimability read, then the duplicate pre-check. None of those are
// authoritative under concurrency; the reservation and the unique-guarded
// insert are. Resubmission is not an error: the existing claim comes back
// with OutcomeAlreadyClaimed.
func (s *ClaimService) SubmitClaim(ctx context.Context, caller Identity, dealID string) (*model.Claim, Outcome, error) {
	start := time.Now()
	outcome := "rejected"
	defer func() {
		metrics.RecordSubmitClaim(outcome, time.Since(start).Seconds())
	}()

	deal, err := s.deals.Get(ctx, dealID)
	if err != nil {
		return nil, "", err
	}

	if deal.IsLocked && !caller.Verified {
		return nil, "", ErrVerificationRequired
	}

	if !deal.IsClaimable() {
		return nil, "", ErrNotClaimable
	}

	if existing, err := s.claims.FindByUserAndDeal(ctx, caller.UserID, dealID); err != nil {
		return nil, "", err
	} else if existing != nil {
		outcome = string(OutcomeAlreadyClaimed)
		return existing, OutcomeAlreadyClaimed, nil
	}

	// Authoritative capacity check. The cheap read above may be stale by
	// the time we get here.
	if _, err := s.deals.ReserveCapacity(ctx, dealID); err != nil {
		if errors.Is(err, repository.ErrCapacityExhausted) {
			outcome = "capacity_exhausted"
		}
		return nil, "", err
	}

	claim := &model.Claim{
		ID:     uuid.NewString(),
		UserID: caller.UserID,
		DealID: dealID,
		Status: model.StatusPending,
	}

	if err := s.claims.Create(ctx, claim); err != nil {
		if !errors.Is(err, repository.ErrDuplicateClaim) {
			// The reservation is already durable; without the release
			// a failed insert would strand one unit of capacity.
			s.compensate(ctx, dealID)
			return nil, "", err
		}

		// A concurrent request for the same pair won the insert race.
		// Both requests reserved capacity, so give ours back and hand
		// the caller the winner's claim.
		s.compensate(ctx, dealID)
		existing, findErr := s.claims.FindByUserAndDeal(ctx, caller.UserID, dealID)
		if findErr != nil {
			return nil, "", findErr
		}
		if existing == nil {
			return nil, "", fmt.Errorf("duplicate claim reported but no claim found for user %s deal %s", caller.UserID, dealID)
		}
		outcome = string(OutcomeAlreadyClaimed)
		return existing, OutcomeAlreadyClaimed, nil
	}

	s.logger.Info("claim admitted",
		zap.String("claim_id", claim.ID),
		zap.String("user_id", caller.UserID),
		zap.String("deal_id", dealID),
	)

	outcome = string(OutcomeCreated)
	return claim, OutcomeCreated, nil
}

func (s *ClaimService) compensate(ctx context.Context, dealID string) {
	if err := s.deals.ReleaseCapacity(ctx, dealID); err != nil {
		// Nothing sane to do inline; the counter is now one high for
		// this deal. Log loudly for operator reconciliation.
		s.logger.Error("capacity compensation failed",
			zap.String("deal_id", dealID),
			zap.Error(err),
		)
	}
}

// ApproveClaim moves a pending claim to approved, stamping approved_at and
// storing an optional redemption code.
func (s *ClaimService) ApproveClaim(ctx context.Context, reviewerID, claimID, claimCode string) (*model.Claim, error) {
	claim, err := s.claims.Transition(ctx, claimID, model.StatusApproved, claimCode)
	if err != nil {
		metrics.ReviewsTotal.WithLabelValues("approve", "failed").Inc()
		return nil, err
	}

	metrics.ReviewsTotal.WithLabelValues("approve", "success").Inc()
	s.logger.Info("claim approved",
		zap.String("claim_id", claimID),
		zap.String("reviewer_id", reviewerID),
	)
	return claim, nil
}

// RejectClaim moves a pending claim to rejected, stamping rejected_at and
// storing the reason in notes.
func (s *ClaimService) RejectClaim(ctx context.Context, reviewerID, claimID, reason string) (*model.Claim, error) {
	if len(reason) > model.MaxNotesLength {
		return nil, ErrNotesTooLong
	}

	claim, err := s.claims.Transition(ctx, claimID, model.StatusRejected, reason)
	if err != nil {
		metrics.ReviewsTotal.WithLabelValues("reject", "failed").Inc()
		return nil, err
	}

	metrics.ReviewsTotal.WithLabelValues("reject", "success").Inc()
	s.logger.Info("claim rejected",
		zap.String("claim_id", claimID),
		zap.String("reviewer_id", reviewerID),
	)
	return claim, nil
}

// GetClaim fetches a claim, enforcing owner-or-admin read access.
func (s *ClaimService) GetClaim(ctx context.Context, caller Identity, claimID string) (*model.Claim, error) {
	claim, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return claim, nil
}

// ListClaims returns a filtered, paginated page of claims.
func (s *ClaimService) ListClaims(ctx context.Context, filter repository.ClaimFilter) ([]model.Claim, int64, error) {
	return s.claims.List(ctx, filter)
}
