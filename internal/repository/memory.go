package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dealhub/dealhub/internal/model"
)

// MemoryDealStore is an in-process deal store with the same reservation
// semantics as the Postgres repository: the capacity check and increment
// happen under one lock, so concurrent reservations can never overshoot.
// Used by tests.
type MemoryDealStore struct {
	mu    sync.Mutex
	deals map[string]*model.Deal
}

// NewMemoryDealStore creates an empty in-memory deal store.
func NewMemoryDealStore() *MemoryDealStore {
	return &MemoryDealStore{deals: make(map[string]*model.Deal)}
}

func (s *MemoryDealStore) Create(_ context.Context, deal *model.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	deal.CreatedAt = now
	deal.UpdatedAt = now
	cp := *deal
	s.deals[deal.ID] = &cp
	return nil
}

func (s *MemoryDealStore) Get(_ context.Context, id string) (*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[id]
	if !ok {
		return nil, ErrDealNotFound
	}
	cp := *deal
	return &cp, nil
}

func (s *MemoryDealStore) Update(_ context.Context, deal *model.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.deals[deal.ID]
	if !ok {
		return ErrDealNotFound
	}
	deal.CurrentClaims = existing.CurrentClaims
	deal.CreatedAt = existing.CreatedAt
	deal.UpdatedAt = time.Now()
	cp := *deal
	s.deals[deal.ID] = &cp
	return nil
}

func (s *MemoryDealStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deals[id]; !ok {
		return ErrDealNotFound
	}
	delete(s.deals, id)
	return nil
}

func (s *MemoryDealStore) List(_ context.Context, filter DealFilter) ([]model.Deal, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []model.Deal{}
	for _, deal := range s.deals {
		if filter.Category != "" && deal.Category != filter.Category {
			continue
		}
		if filter.ClaimableOnly && !deal.IsClaimable() {
			continue
		}
		matched = append(matched, *deal)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page, limit := normalizePage(filter.Page, filter.Limit)
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.Deal{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryDealStore) ReserveCapacity(_ context.Context, dealID string) (*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[dealID]
	if !ok {
		return nil, ErrDealNotFound
	}
	if deal.MaxClaims != nil && deal.CurrentClaims >= *deal.MaxClaims {
		return nil, ErrCapacityExhausted
	}
	deal.CurrentClaims++
	deal.UpdatedAt = time.Now()
	cp := *deal
	return &cp, nil
}

func (s *MemoryDealStore) ReleaseCapacity(_ context.Context, dealID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deal, ok := s.deals[dealID]
	if !ok {
		return ErrDealNotFound
	}
	if deal.CurrentClaims > 0 {
		deal.CurrentClaims--
		deal.UpdatedAt = time.Now()
	}
	return nil
}

// MemoryClaimStore is an in-process claim ledger enforcing the same
// (user, deal) uniqueness and pending-only transitions as the Postgres
// repository. Used by tests.
type MemoryClaimStore struct {
	mu      sync.Mutex
	claims  map[string]*model.Claim
	byPair  map[string]string
	dealSrc *MemoryDealStore
}

// NewMemoryClaimStore creates an empty in-memory claim store. deals may be
// nil when ExpireSweep is not exercised.
func NewMemoryClaimStore(deals *MemoryDealStore) *MemoryClaimStore {
	return &MemoryClaimStore{
		claims:  make(map[string]*model.Claim),
		byPair:  make(map[string]string),
		dealSrc: deals,
	}
}

func pairKey(userID, dealID string) string {
	return userID + "\x00" + dealID
}

func (s *MemoryClaimStore) Create(_ context.Context, claim *model.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(claim.UserID, claim.DealID)
	if _, exists := s.byPair[key]; exists {
		return ErrDuplicateClaim
	}

	now := time.Now()
	if claim.Status == "" {
		claim.Status = model.StatusPending
	}
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = now
	}
	claim.CreatedAt = now
	claim.UpdatedAt = now

	cp := *claim
	s.claims[claim.ID] = &cp
	s.byPair[key] = claim.ID
	return nil
}

func (s *MemoryClaimStore) Get(_ context.Context, id string) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	cp := *claim
	return &cp, nil
}

func (s *MemoryClaimStore) FindByUserAndDeal(_ context.Context, userID, dealID string) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[pairKey(userID, dealID)]
	if !ok {
		return nil, nil
	}
	cp := *s.claims[id]
	return &cp, nil
}

func (s *MemoryClaimStore) Transition(_ context.Context, id, target, metadata string) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim, ok := s.claims[id]
	if !ok {
		return nil, ErrClaimNotFound
	}
	if claim.Status != model.StatusPending {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	switch target {
	case model.StatusApproved:
		claim.Status = model.StatusApproved
		claim.ApprovedAt = &now
		claim.ClaimCode = metadata
	case model.StatusRejected:
		claim.Status = model.StatusRejected
		claim.RejectedAt = &now
		claim.Notes = metadata
	case model.StatusExpired:
		claim.Status = model.StatusExpired
	default:
		return nil, ErrInvalidTransition
	}
	claim.UpdatedAt = now

	cp := *claim
	return &cp, nil
}

func (s *MemoryClaimStore) List(_ context.Context, filter ClaimFilter) ([]model.Claim, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []model.Claim{}
	for _, claim := range s.claims {
		if filter.UserID != "" && claim.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && filter.Status != "all" && claim.Status != filter.Status {
			continue
		}
		matched = append(matched, *claim)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ClaimedAt.After(matched[j].ClaimedAt)
	})

	total := int64(len(matched))
	page, limit := normalizePage(filter.Page, filter.Limit)
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.Claim{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryClaimStore) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int64
	for _, claim := range s.claims {
		if claim.Status != model.StatusPending || s.dealSrc == nil {
			continue
		}
		deal, err := s.dealSrc.Get(ctx, claim.DealID)
		if err != nil {
			continue
		}
		if deal.ExpiryDate != nil && !deal.ExpiryDate.After(now) {
			claim.Status = model.StatusExpired
			claim.UpdatedAt = now
			expired++
		}
	}
	return expired, nil
}
