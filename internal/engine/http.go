package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/julesdo/seedmedia-sub002/internal/curve"
	"github.com/julesdo/seedmedia-sub002/internal/model"
)

// Routes mounts the engine's HTTP surface on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/markets", s.handleCreateMarket)
	r.Post("/markets/{marketID}/pools", s.handleInitializePools)
	r.Get("/markets/{marketID}/pools", s.handleGetPools)
	r.Get("/markets/{marketID}/odds", s.handleGetOdds)
	r.Get("/markets/{marketID}/history", s.handleGetHistory)
	r.Get("/markets/{marketID}/window", s.handleGetWindow)
	r.Post("/markets/{marketID}/liquidate", s.handleLiquidate)
	r.Post("/trade/buy", s.handleBuy)
	r.Post("/trade/sell", s.handleSell)
	r.Get("/users/{userID}/positions", s.handleGetPositions)
}

// --- Request bodies ---

// CreateMarketRequest is the JSON body for POST /markets.
type CreateMarketRequest struct {
	TargetPrice decimal.Decimal `json:"target_price"`
	DepthFactor decimal.Decimal `json:"depth_factor"`
	EventType   string          `json:"event_type"`
	EventAt     time.Time       `json:"event_at"`
	HeatScore   decimal.Decimal `json:"heat_score"`
	Sentiment   decimal.Decimal `json:"sentiment"`
}

// InitPoolsRequest is the JSON body for POST /markets/{marketID}/pools.
type InitPoolsRequest struct {
	TargetPrice decimal.Decimal `json:"target_price"`
	DepthFactor decimal.Decimal `json:"depth_factor"`
}

// TradeRequest is the JSON body for POST /trade/buy and /trade/sell.
type TradeRequest struct {
	UserID   string          `json:"user_id"`
	MarketID string          `json:"market_id"`
	Side     model.Side      `json:"side"`
	Shares   decimal.Decimal `json:"shares"`
}

// LiquidateRequest is the JSON body for POST /markets/{marketID}/liquidate.
type LiquidateRequest struct {
	WinningSide model.Side `json:"winning_side"`
}

// --- Handlers ---

func (s *Service) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	market, err := s.CreateMarket(r.Context(), CreateMarketParams{
		TargetPrice: req.TargetPrice,
		DepthFactor: req.DepthFactor,
		EventType:   req.EventType,
		EventAt:     req.EventAt,
		HeatScore:   req.HeatScore,
		Sentiment:   req.Sentiment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

func (s *Service) handleInitializePools(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req InitPoolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.InitializePools(r.Context(), marketID, req.TargetPrice, req.DepthFactor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleBuy(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeTrade(w, r)
	if !ok {
		return
	}
	result, err := s.Buy(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleSell(w http.ResponseWriter, r *http.Request) {
	params, ok := decodeTrade(w, r)
	if !ok {
		return
	}
	result, err := s.Sell(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req LiquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.Liquidate(r.Context(), marketID, req.WinningSide)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools, err := s.GetPools(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (s *Service) handleGetOdds(w http.ResponseWriter, r *http.Request) {
	yesOdds, err := s.GetOdds(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"odds": yesOdds})
}

func (s *Service) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.GetHistory(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Service) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	d, err := s.GetInvestmentWindow(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"duration_ms": d.Milliseconds()})
}

func (s *Service) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.GetUserPositions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

// --- Helpers ---

func decodeTrade(w http.ResponseWriter, r *http.Request) (TradeParams, bool) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return TradeParams{}, false
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return TradeParams{}, false
	}
	if !req.Side.Valid() {
		writeError(w, "side must be YES or NO", http.StatusBadRequest)
		return TradeParams{}, false
	}
	return TradeParams{
		UserID:   req.UserID,
		MarketID: req.MarketID,
		Side:     req.Side,
		Shares:   req.Shares,
	}, true
}

// writeDomainError maps engine sentinels to HTTP statuses: caller bugs →
// 400, business rejections → 409, missing state → 404.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, curve.ErrInvalidParameter),
		errors.Is(err, curve.ErrSharesExceedSupply):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientShares),
		errors.Is(err, ErrInsufficientLiquidity),
		errors.Is(err, ErrMarketResolved):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrMarketNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrPositionNotFound),
		errors.Is(err, ErrPoolUninitialized),
		errors.Is(err, ErrPoolsNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
