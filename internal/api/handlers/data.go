package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
	"github.com/wonny/newsquant/pkg/redis"
)

// defaultMentionWindow applies when /api/mentions has no since parameter
const defaultMentionWindow = 7 * 24 * time.Hour

// DataHandler serves stored pipeline outputs
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	store  contracts.Store
	cache  *redis.Cache
	logger *logger.Logger
	now    func() time.Time
}

// NewDataHandler creates a new data handler. cache may be backed by a disabled client.
func NewDataHandler(store contracts.Store, cache *redis.Cache, log *logger.Logger) *DataHandler {
	return &DataHandler{
		store:  store,
		cache:  cache,
		logger: log,
		now:    time.Now,
	}
}

// FeaturesResponse is the body of GET /api/features/{ticker}
type FeaturesResponse struct {
	Ticker string                 `json:"ticker"`
	Count  int                    `json:"count"`
	Rows   []contracts.FeatureRow `json:"rows"`
}

// GetFeatures returns the feature matrix rows of one ticker
// GET /api/features/{ticker}
func (h *DataHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["ticker"]))
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	var rows []contracts.FeatureRow
	load := func() (interface{}, error) {
		return h.store.ListFeatureRows(ctx, ticker)
	}
	if err := h.cache.GetOrSet(ctx, redis.FeaturesKey(ticker), &rows, redis.TTLShort, load); err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to get feature rows")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve feature rows")
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "no feature rows for "+ticker)
		return
	}

	respondJSON(w, http.StatusOK, FeaturesResponse{
		Ticker: ticker,
		Count:  len(rows),
		Rows:   rows,
	})
}

// MentionsResponse is the body of GET /api/mentions
type MentionsResponse struct {
	Since    string              `json:"since"`
	Count    int                 `json:"count"`
	Mentions []contracts.Mention `json:"mentions"`
}

// GetMentions returns mentions published on or after ?since=YYYY-MM-DD
// GET /api/mentions
func (h *DataHandler) GetMentions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since := contracts.DateOf(h.now().Add(-defaultMentionWindow))
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(contracts.DateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'since' date format (expected YYYY-MM-DD)")
			return
		}
		since = parsed
	}

	mentions, err := h.store.ListMentions(ctx, since)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list mentions")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve mentions")
		return
	}
	if mentions == nil {
		mentions = []contracts.Mention{}
	}

	respondJSON(w, http.StatusOK, MentionsResponse{
		Since:    since.Format(contracts.DateLayout),
		Count:    len(mentions),
		Mentions: mentions,
	})
}

// GetPrices returns stored bars for one ticker, optionally bounded by ?from= and ?to=
// GET /api/prices/{ticker}
func (h *DataHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["ticker"]))

	var from, to time.Time
	for name, dest := range map[string]*time.Time{"from": &from, "to": &to} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(contracts.DateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid '"+name+"' date format (expected YYYY-MM-DD)")
			return
		}
		*dest = parsed
	}

	bars, err := h.store.ListPrices(ctx, []string{ticker}, from, to)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to list prices")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve prices")
		return
	}
	if bars == nil {
		bars = []contracts.PriceBar{}
	}

	respondJSON(w, http.StatusOK, bars)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
