package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dealhub/dealhub/internal/model"
)

// Response envelope shared by all endpoints.
type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// pagination describes one page of a listing.
type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func newPagination(page, limit int, total int64) pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	pages := (total + int64(limit) - 1) / int64(limit)
	return pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// dealView decorates a deal with its derived claimability predicates, which
// are computed at render time and never persisted.
type dealView struct {
	*model.Deal
	IsExpired   bool `json:"is_expired"`
	IsMaxedOut  bool `json:"is_maxed_out"`
	IsClaimable bool `json:"is_claimable"`
}

func newDealView(d *model.Deal) dealView {
	return dealView{
		Deal:        d,
		IsExpired:   d.IsExpired(),
		IsMaxedOut:  d.IsMaxedOut(),
		IsClaimable: d.IsClaimable(),
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, envelope{Status: "error", Message: message})
}

func respondWithData(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	respondWithJSON(w, statusCode, envelope{Status: "success", Message: message, Data: data})
}
