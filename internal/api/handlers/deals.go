package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dealhub/dealhub/internal/model"
	"github.com/dealhub/dealhub/internal/repository"
	"github.com/dealhub/dealhub/internal/service"
)

// DealsHandler exposes the deal catalog over HTTP.
type DealsHandler struct {
	deals  *service.DealService
	logger *zap.Logger
}

// NewDealsHandler creates a new deals handler.
func NewDealsHandler(deals *service.DealService, logger *zap.Logger) *DealsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DealsHandler{deals: deals, logger: logger}
}

type dealRequest struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	PartnerName       string     `json:"partner_name"`
	PartnerLogo       string     `json:"partner_logo"`
	DiscountValue     string     `json:"discount_value"`
	EligibilityRules  []string   `json:"eligibility_rules"`
	IsLocked          bool       `json:"is_locked"`
	ExpiryDate        *time.Time `json:"expiry_date"`
	WebsiteURL        string     `json:"website_url"`
	ClaimInstructions string     `json:"claim_instructions"`
	MaxClaims         *int64     `json:"max_claims"`
}

func (req *dealRequest) toModel() *model.Deal {
	return &model.Deal{
		Title:             req.Title,
		Description:       req.Description,
		Category:          req.Category,
		PartnerName:       req.PartnerName,
		PartnerLogo:       req.PartnerLogo,
		DiscountValue:     req.DiscountValue,
		EligibilityRules:  req.EligibilityRules,
		IsLocked:          req.IsLocked,
		ExpiryDate:        req.ExpiryDate,
		WebsiteURL:        req.WebsiteURL,
		ClaimInstructions: req.ClaimInstructions,
		MaxClaims:         req.MaxClaims,
	}
}

// List handles GET /api/v1/deals
func (h *DealsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := repository.DealFilter{
		Category:      q.Get("category"),
		ClaimableOnly: q.Get("claimable") == "true",
		Page:          page,
		Limit:         limit,
	}

	deals, total, err := h.deals.ListDeals(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list deals", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to list deals")
		return
	}

	views := make([]dealView, 0, len(deals))
	for i := range deals {
		views = append(views, newDealView(&deals[i]))
	}

	respondWithData(w, http.StatusOK, "", map[string]interface{}{
		"deals":      views,
		"pagination": newPagination(filter.Page, filter.Limit, total),
	})
}

// Get handles GET /api/v1/deals/{dealID}
func (h *DealsHandler) Get(w http.ResponseWriter, r *http.Request) {
	deal, err := h.deals.GetDeal(r.Context(), chi.URLParam(r, "dealID"))
	if err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			respondWithError(w, http.StatusNotFound, "deal not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get deal")
		return
	}

	respondWithData(w, http.StatusOK, "", map[string]interface{}{"deal": newDealView(deal)})
}

// Create handles POST /api/v1/deals (admin)
func (h *DealsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dealRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deal, err := h.deals.CreateDeal(r.Context(), req.toModel())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithData(w, http.StatusCreated, "deal created successfully", map[string]interface{}{"deal": newDealView(deal)})
}

// Update handles PUT /api/v1/deals/{dealID} (admin)
func (h *DealsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dealRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	deal := req.toModel()
	deal.ID = chi.URLParam(r, "dealID")

	updated, err := h.deals.UpdateDeal(r.Context(), deal)
	if err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			respondWithError(w, http.StatusNotFound, "deal not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithData(w, http.StatusOK, "deal updated successfully", map[string]interface{}{"deal": newDealView(updated)})
}

// Delete handles DELETE /api/v1/deals/{dealID} (admin)
func (h *DealsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.deals.DeleteDeal(r.Context(), chi.URLParam(r, "dealID")); err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			respondWithError(w, http.StatusNotFound, "deal not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to delete deal")
		return
	}

	respondWithData(w, http.StatusOK, "deal deleted successfully", nil)
}
