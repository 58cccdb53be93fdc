package service

import (
	"context"
	"time"

	"github.com/dealhub/dealhub/internal/model"
	"github.com/dealhub/dealhub/internal/repository"
)

// DealStore owns deal catalog state and the capacity reservation primitive.
// Implemented by repository.DealRepository (Postgres) and
// repository.MemoryDealStore (tests).
type DealStore interface {
	Create(ctx context.Context, deal *model.Deal) error
	Get(ctx context.Context, id string) (*model.Deal, error)
	Update(ctx context.Context, deal *model.Deal) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.DealFilter) ([]model.Deal, int64, error)

	// ReserveCapacity atomically consumes one unit of claim capacity,
	// returning repository.ErrCapacityExhausted when the deal is full at
	// the moment of the attempt.
	ReserveCapacity(ctx context.Context, dealID string) (*model.Deal, error)

	// ReleaseCapacity compensates a reservation whose ledger insert failed.
	ReleaseCapacity(ctx context.Context, dealID string) error
}

// ClaimStore is the durable claim ledger. Implemented by
// repository.ClaimRepository (Postgres) and repository.MemoryClaimStore
// (tests).
type ClaimStore interface {
	// Create inserts a pending claim, returning
	// repository.ErrDuplicateClaim when a claim for the same (user, deal)
	// pair already exists.
	Create(ctx context.Context, claim *model.Claim) error
	Get(ctx context.Context, id string) (*model.Claim, error)
	FindByUserAndDeal(ctx context.Context, userID, dealID string) (*model.Claim, error)

	// Transition moves a pending claim to target, returning
	// repository.ErrInvalidTransition when the claim has already been
	// decided.
	Transition(ctx context.Context, id, target, metadata string) (*model.Claim, error)
	List(ctx context.Context, filter repository.ClaimFilter) ([]model.Claim, int64, error)
	ExpireSweep(ctx context.Context, now time.Time) (int64, error)
}
