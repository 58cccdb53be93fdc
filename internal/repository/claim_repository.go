package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dealhub/dealhub/internal/model"
)

// pqUniqueViolation is the Postgres error code raised when the
// (user_id, deal_id) unique constraint rejects an insert.
const pqUniqueViolation = "23505"

const claimColumns = `id, user_id, deal_id, status, claimed_at, approved_at,
		rejected_at, notes, claim_code, created_at, updated_at`

// ClaimRepository is the durable ledger of claims. Uniqueness per
// (user, deal) and the status state machine are enforced here, at the
// storage layer, so concurrent controllers cannot race past them.
type ClaimRepository struct {
	db *sqlx.DB
}

// NewClaimRepository creates a new claim repository.
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create inserts a new pending claim. A violation of the (user_id, deal_id)
// unique constraint is an expected concurrent-client outcome and surfaces as
// ErrDuplicateClaim rather than a generic failure.
func (r *ClaimRepository) Create(ctx context.Context, claim *model.Claim) error {
	query := `
		INSERT INTO claims (id, user_id, deal_id, status, claimed_at, notes,
			claim_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now()
	if claim.Status == "" {
		claim.Status = model.StatusPending
	}
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = now
	}
	claim.CreatedAt = now
	claim.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		claim.ID, claim.UserID, claim.DealID, claim.Status, claim.ClaimedAt,
		claim.Notes, claim.ClaimCode, claim.CreatedAt, claim.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateClaim
		}
		return fmt.Errorf("failed to create claim: %w", err)
	}

	return nil
}

// Get retrieves a claim by ID.
func (r *ClaimRepository) Get(ctx context.Context, id string) (*model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`

	var claim model.Claim
	err := r.db.GetContext(ctx, &claim, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return &claim, nil
}

// FindByUserAndDeal returns the claim for a (user, deal) pair, or nil when
// none exists. Used for the idempotent duplicate pre-check and to return the
// prior claim to a retrying client.
func (r *ClaimRepository) FindByUserAndDeal(ctx context.Context, userID, dealID string) (*model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE user_id = $1 AND deal_id = $2`

	var claim model.Claim
	err := r.db.GetContext(ctx, &claim, query, userID, dealID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find claim: %w", err)
	}

	return &claim, nil
}

// Transition moves a pending claim to target and stamps the matching audit
// timestamp. The status guard lives in the WHERE clause, so a claim already
// decided by a concurrent reviewer matches zero rows and the retry surfaces
// as ErrInvalidTransition instead of silently double-processing.
//
// metadata carries the approval claim code or the rejection reason, depending
// on target.
func (r *ClaimRepository) Transition(ctx context.Context, id, target, metadata string) (*model.Claim, error) {
	now := time.Now()

	var query string
	var args []interface{}
	switch target {
	case model.StatusApproved:
		query = `
			UPDATE claims
			SET status = $2, approved_at = $3, claim_code = $4, updated_at = $3
			WHERE id = $1 AND status = 'pending'
			RETURNING ` + claimColumns
		args = []interface{}{id, target, now, metadata}
	case model.StatusRejected:
		query = `
			UPDATE claims
			SET status = $2, rejected_at = $3, notes = $4, updated_at = $3
			WHERE id = $1 AND status = 'pending'
			RETURNING ` + claimColumns
		args = []interface{}{id, target, now, metadata}
	case model.StatusExpired:
		query = `
			UPDATE claims
			SET status = $2, updated_at = $3
			WHERE id = $1 AND status = 'pending'
			RETURNING ` + claimColumns
		args = []interface{}{id, target, now}
	default:
		return nil, fmt.Errorf("%q is not a valid transition target", target)
	}

	var claim model.Claim
	err := r.db.GetContext(ctx, &claim, query, args...)
	if err == nil {
		return &claim, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition claim: %w", err)
	}

	// Zero rows: either the claim is gone or it already left pending.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrInvalidTransition
}

// ClaimFilter narrows a claim listing.
type ClaimFilter struct {
	UserID string
	Status string
	Page   int
	Limit  int
}

// List returns a page of claims plus the total match count, newest first.
func (r *ClaimRepository) List(ctx context.Context, filter ClaimFilter) ([]model.Claim, int64, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, "user_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" && filter.Status != "all" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM claims WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count claims: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT `+claimColumns+` FROM claims WHERE %s
		ORDER BY claimed_at DESC LIMIT $%d OFFSET $%d`,
		whereClause, len(args)-1, len(args))

	claims := []model.Claim{}
	if err := r.db.SelectContext(ctx, &claims, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list claims: %w", err)
	}

	return claims, total, nil
}

// ExpireSweep moves pending claims whose deal has expired to the expired
// status and reports how many were moved. Rows are taken with
// FOR UPDATE SKIP LOCKED so concurrent sweepers and in-flight reviews never
// contend on the same claim.
func (r *ClaimRepository) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT c.id
		FROM claims c
		JOIN deals d ON d.id = c.deal_id
		WHERE c.status = 'pending'
		  AND d.expiry_date IS NOT NULL
		  AND d.expiry_date <= $1
		FOR UPDATE OF c SKIP LOCKED
	`

	var ids []string
	if err := tx.SelectContext(ctx, &ids, selectQuery, now); err != nil {
		return 0, fmt.Errorf("failed to select expired claims: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	updateQuery := `
		UPDATE claims
		SET status = 'expired', updated_at = $2
		WHERE id = ANY($1) AND status = 'pending'
	`

	result, err := tx.ExecContext(ctx, updateQuery, pq.Array(ids), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire claims: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return expired, nil
}
