package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dealhub/dealhub/internal/api/middleware"
	"github.com/dealhub/dealhub/internal/repository"
	"github.com/dealhub/dealhub/internal/service"
)

// ClaimsHandler exposes the claim engine over HTTP.
type ClaimsHandler struct {
	claims *service.ClaimService
	logger *zap.Logger
}

// NewClaimsHandler creates a new claims handler.
func NewClaimsHandler(claims *service.ClaimService, logger *zap.Logger) *ClaimsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimsHandler{claims: claims, logger: logger}
}

// Submit handles POST /api/v1/deals/{dealID}/claim
func (h *ClaimsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.IdentityFrom(ctx)
	dealID := chi.URLParam(r, "dealID")

	claim, outcome, err := h.claims.SubmitClaim(ctx, caller, dealID)
	if err != nil {
		h.logger.Warn("claim submission rejected",
			zap.Error(err),
			zap.String("user_id", caller.UserID),
			zap.String("deal_id", dealID),
		)

		switch {
		case errors.Is(err, repository.ErrDealNotFound):
			respondWithError(w, http.StatusNotFound, "deal not found")
		case errors.Is(err, service.ErrVerificationRequired):
			respondWithError(w, http.StatusForbidden, "this deal requires account verification")
		case errors.Is(err, service.ErrNotClaimable):
			respondWithError(w, http.StatusBadRequest, "this deal is no longer available")
		case errors.Is(err, repository.ErrCapacityExhausted):
			respondWithError(w, http.StatusBadRequest, "deal claim limit reached")
		default:
			respondWithError(w, http.StatusInternalServerError, "failed to submit claim")
		}
		return
	}

	if outcome == service.OutcomeAlreadyClaimed {
		respondWithData(w, http.StatusOK, "you have already claimed this deal", map[string]interface{}{
			"claim":   claim,
			"outcome": outcome,
		})
		return
	}

	respondWithData(w, http.StatusCreated, "deal claimed successfully", map[string]interface{}{
		"claim":   claim,
		"outcome": outcome,
	})
}

// Get handles GET /api/v1/claims/{claimID}
func (h *ClaimsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.IdentityFrom(ctx)

	claim, err := h.claims.GetClaim(ctx, caller, chi.URLParam(r, "claimID"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrClaimNotFound):
			respondWithError(w, http.StatusNotFound, "claim not found")
		case errors.Is(err, service.ErrNotAuthorized):
			respondWithError(w, http.StatusForbidden, "not authorized to view this claim")
		default:
			respondWithError(w, http.StatusInternalServerError, "failed to get claim")
		}
		return
	}

	respondWithData(w, http.StatusOK, "", map[string]interface{}{"claim": claim})
}

// ListMine handles GET /api/v1/claims/my
func (h *ClaimsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.IdentityFrom(ctx)

	filter := claimFilterFromQuery(r)
	filter.UserID = caller.UserID

	h.list(w, r, filter)
}

// ListAll handles GET /api/v1/claims (admin)
func (h *ClaimsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	filter := claimFilterFromQuery(r)
	filter.UserID = r.URL.Query().Get("user_id")

	h.list(w, r, filter)
}

func (h *ClaimsHandler) list(w http.ResponseWriter, r *http.Request, filter repository.ClaimFilter) {
	claims, total, err := h.claims.ListClaims(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list claims", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}

	respondWithData(w, http.StatusOK, "", map[string]interface{}{
		"claims":     claims,
		"pagination": newPagination(filter.Page, filter.Limit, total),
	})
}

type reviewRequest struct {
	ClaimCode string `json:"claim_code"`
	Reason    string `json:"reason"`
}

// Approve handles PUT /api/v1/claims/{claimID}/approve (admin)
func (h *ClaimsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.IdentityFrom(ctx)
	claimID := chi.URLParam(r, "claimID")

	var req reviewRequest
	if r.Body != nil {
		defer r.Body.Close()
		// An empty body means an approval without a redemption code.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	claim, err := h.claims.ApproveClaim(ctx, caller.UserID, claimID, req.ClaimCode)
	if err != nil {
		h.respondReviewError(w, err, "approved")
		return
	}

	respondWithData(w, http.StatusOK, "claim approved successfully", map[string]interface{}{"claim": claim})
}

// Reject handles PUT /api/v1/claims/{claimID}/reject (admin)
func (h *ClaimsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.IdentityFrom(ctx)
	claimID := chi.URLParam(r, "claimID")

	var req reviewRequest
	if r.Body != nil {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	claim, err := h.claims.RejectClaim(ctx, caller.UserID, claimID, req.Reason)
	if err != nil {
		h.respondReviewError(w, err, "rejected")
		return
	}

	respondWithData(w, http.StatusOK, "claim rejected", map[string]interface{}{"claim": claim})
}

func (h *ClaimsHandler) respondReviewError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, repository.ErrClaimNotFound):
		respondWithError(w, http.StatusNotFound, "claim not found")
	case errors.Is(err, repository.ErrInvalidTransition):
		respondWithError(w, http.StatusBadRequest, "only pending claims can be "+action)
	case errors.Is(err, service.ErrNotesTooLong):
		respondWithError(w, http.StatusBadRequest, "notes cannot exceed 500 characters")
	default:
		respondWithError(w, http.StatusInternalServerError, "failed to review claim")
	}
}

func claimFilterFromQuery(r *http.Request) repository.ClaimFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return repository.ClaimFilter{
		Status: q.Get("status"),
		Page:   page,
		Limit:  limit,
	}
}
