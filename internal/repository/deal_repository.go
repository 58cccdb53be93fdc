package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dealhub/dealhub/internal/model"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

const dealColumns = `id, title, description, category, partner_name, partner_logo,
		discount_value, eligibility_rules, is_locked, expiry_date, website_url,
		claim_instructions, max_claims, current_claims, created_at, updated_at`

// DealRepository handles deal catalog and capacity data operations.
type DealRepository struct {
	db DBExecutor
}

// NewDealRepository creates a new deal repository.
func NewDealRepository(db DBExecutor) *DealRepository {
	return &DealRepository{db: db}
}

// Create inserts a new deal.
func (r *DealRepository) Create(ctx context.Context, deal *model.Deal) error {
	query := `
		INSERT INTO deals (id, title, description, category, partner_name, partner_logo,
			discount_value, eligibility_rules, is_locked, expiry_date, website_url,
			claim_instructions, max_claims, current_claims, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	now := time.Now()
	deal.CreatedAt = now
	deal.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		deal.ID, deal.Title, deal.Description, deal.Category, deal.PartnerName,
		deal.PartnerLogo, deal.DiscountValue, deal.EligibilityRules, deal.IsLocked,
		deal.ExpiryDate, deal.WebsiteURL, deal.ClaimInstructions, deal.MaxClaims,
		deal.CurrentClaims, deal.CreatedAt, deal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}

	return nil
}

// Get retrieves a deal by ID.
func (r *DealRepository) Get(ctx context.Context, id string) (*model.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	var deal model.Deal
	err := r.db.GetContext(ctx, &deal, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}

	return &deal, nil
}

// Update rewrites the catalog fields of a deal. CurrentClaims is deliberately
// not part of the statement; it moves only through ReserveCapacity and
// ReleaseCapacity. Lowering max_claims below current_claims is permitted and
// simply freezes further admissions.
func (r *DealRepository) Update(ctx context.Context, deal *model.Deal) error {
	query := `
		UPDATE deals
		SET title = $2, description = $3, category = $4, partner_name = $5,
			partner_logo = $6, discount_value = $7, eligibility_rules = $8,
			is_locked = $9, expiry_date = $10, website_url = $11,
			claim_instructions = $12, max_claims = $13, updated_at = $14
		WHERE id = $1
	`

	deal.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		deal.ID, deal.Title, deal.Description, deal.Category, deal.PartnerName,
		deal.PartnerLogo, deal.DiscountValue, deal.EligibilityRules, deal.IsLocked,
		deal.ExpiryDate, deal.WebsiteURL, deal.ClaimInstructions, deal.MaxClaims,
		deal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update deal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDealNotFound
	}

	return nil
}

// Delete removes a deal from the catalog.
func (r *DealRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDealNotFound
	}

	return nil
}

// DealFilter narrows a deal listing.
type DealFilter struct {
	Category      string
	ClaimableOnly bool
	Page          int
	Limit         int
}

// List returns a page of deals plus the total match count, newest first.
func (r *DealRepository) List(ctx context.Context, filter DealFilter) ([]model.Deal, int64, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.ClaimableOnly {
		where = append(where,
			"(expiry_date IS NULL OR expiry_date > NOW())",
			"(max_claims IS NULL OR current_claims < max_claims)")
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM deals WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count deals: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT `+dealColumns+` FROM deals WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		whereClause, len(args)-1, len(args))

	deals := []model.Deal{}
	if err := r.db.SelectContext(ctx, &deals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list deals: %w", err)
	}

	return deals, total, nil
}

// ReserveCapacity atomically consumes one unit of a deal's claim capacity and
// returns the post-increment row.
//
// The increment and the capacity comparison happen in a single conditional
// UPDATE so two concurrent reservations can never both pass a stale read of
// current_claims. Deals without max_claims always match (accounting only, not
// gating). Zero rows matched means either the deal is gone or its capacity
// was exhausted at the moment of the attempt; a follow-up read disambiguates.
func (r *DealRepository) ReserveCapacity(ctx context.Context, dealID string) (*model.Deal, error) {
	query := `
		UPDATE deals
		SET current_claims = current_claims + 1, updated_at = $2
		WHERE id = $1 AND (max_claims IS NULL OR current_claims < max_claims)
		RETURNING ` + dealColumns

	var deal model.Deal
	err := r.db.GetContext(ctx, &deal, query, dealID, time.Now())
	if err == nil {
		return &deal, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to reserve capacity: %w", err)
	}

	if _, getErr := r.Get(ctx, dealID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrCapacityExhausted
}

// ReleaseCapacity returns one previously reserved unit. It exists solely as
// the compensation path for an admission whose ledger insert failed after a
// successful reservation; nothing else may decrement current_claims.
func (r *DealRepository) ReleaseCapacity(ctx context.Context, dealID string) error {
	query := `
		UPDATE deals
		SET current_claims = current_claims - 1, updated_at = $2
		WHERE id = $1 AND current_claims > 0
	`

	result, err := r.db.ExecContext(ctx, query, dealID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to release capacity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDealNotFound
	}

	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
