package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/pointchain/internal/chain"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/punchamoorthee/pointchain/internal/service"
	"github.com/punchamoorthee/pointchain/internal/store"
	"github.com/shopspring/decimal"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointchain_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pointchain_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Store is the read surface the HTTP layer hits directly, plus user
// creation. Implemented by *store.Store; faked in tests.
type Store interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetLoyalty(ctx context.Context, memberID uuid.UUID) (*domain.Loyalty, error)
	ListLoyaltyTransactions(ctx context.Context, memberID uuid.UUID, page, size int) ([]domain.LoyaltyTransaction, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*domain.MicrocreditCampaign, error)
	GetSupport(ctx context.Context, id uuid.UUID) (*domain.MicrocreditSupport, error)
}

type Handler struct {
	store    Store
	service  *service.Service
	wallets  chain.Ledger
	earnRate int64
}

func NewHandler(s Store, svc *service.Service, wallets chain.Ledger, earnRate int64) *Handler {
	return &Handler{store: s, service: svc, wallets: wallets, earnRate: earnRate}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterUserHandler creates a user with a freshly sealed wallet and
// mirrors the account registration onto the chain. The response never
// depends on the chain being up; the registration record carries the
// mirror status.
func (h *Handler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/users"))
	defer timer.ObserveDuration()

	var req struct {
		Role   domain.Role `json:"role"`
		Email  string      `json:"email"`
		Card   string      `json:"card"`
		Secret string      `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/users")
		return
	}
	if req.Email == "" && req.Card == "" {
		h.respondError(w, http.StatusUnprocessableEntity, "Either email or card is required", "POST", "/users")
		return
	}

	account, err := h.wallets.CreateWallet(req.Secret)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Wallet creation failed", "POST", "/users")
		return
	}

	user := &domain.User{
		ID:        uuid.New(),
		Role:      req.Role,
		Account:   account,
		Email:     req.Email,
		Card:      req.Card,
		Activated: true,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.respondError(w, http.StatusInternalServerError, "System error creating user", "POST", "/users")
		return
	}

	tx, err := h.service.CreateRegisterTransaction(r.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedRole) {
			h.respondError(w, http.StatusUnprocessableEntity, "Role cannot be registered", "POST", "/users")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "System error registering account", "POST", "/users")
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]any{"user": user, "registration": tx}, "POST", "/users")
}

func (h *Handler) EarnPointsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/loyalty/earn"))
	defer timer.ObserveDuration()

	var req struct {
		PartnerID uuid.UUID       `json:"partner_id"`
		MemberID  uuid.UUID       `json:"member_id"`
		Amount    decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/loyalty/earn")
		return
	}
	if !req.Amount.IsPositive() {
		h.respondError(w, http.StatusUnprocessableEntity, "Positive amount required", "POST", "/loyalty/earn")
		return
	}

	partner, member, ok := h.loadPair(w, r, req.PartnerID, req.MemberID, "POST", "/loyalty/earn")
	if !ok {
		return
	}

	points := req.Amount.Mul(decimal.NewFromInt(h.earnRate)).IntPart()
	tx, err := h.service.CreateEarnTransaction(r.Context(), partner, member, req.Amount, points)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "System error recording earn", "POST", "/loyalty/earn")
		return
	}
	h.respondJSON(w, http.StatusCreated, tx, "POST", "/loyalty/earn")
}

func (h *Handler) RedeemPointsHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/loyalty/redeem"))
	defer timer.ObserveDuration()

	var req struct {
		PartnerID uuid.UUID       `json:"partner_id"`
		MemberID  uuid.UUID       `json:"member_id"`
		OfferID   *uuid.UUID      `json:"offer_id"`
		Amount    decimal.Decimal `json:"amount"`
		Points    int64           `json:"points"`
		Quantity  int             `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/loyalty/redeem")
		return
	}
	if req.Points <= 0 {
		h.respondError(w, http.StatusUnprocessableEntity, "Positive points required", "POST", "/loyalty/redeem")
		return
	}

	partner, member, ok := h.loadPair(w, r, req.PartnerID, req.MemberID, "POST", "/loyalty/redeem")
	if !ok {
		return
	}

	tx, err := h.service.CreateRedeemTransaction(r.Context(), partner, member, req.OfferID, req.Amount, req.Points, req.Quantity)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientPoints) {
			h.respondError(w, http.StatusUnprocessableEntity, "Insufficient points", "POST", "/loyalty/redeem")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "System error recording redeem", "POST", "/loyalty/redeem")
		return
	}
	h.respondJSON(w, http.StatusCreated, tx, "POST", "/loyalty/redeem")
}

func (h *Handler) GetLoyaltyHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(mux.Vars(r)["memberId"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid member id", "GET", "/loyalty/{memberId}")
		return
	}
	balance, err := h.store.GetLoyalty(r.Context(), memberID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "System error reading balance", "GET", "/loyalty/{memberId}")
		return
	}
	h.respondJSON(w, http.StatusOK, balance, "GET", "/loyalty/{memberId}")
}

func (h *Handler) ListLoyaltyTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(mux.Vars(r)["memberId"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid member id", "GET", "/loyalty/{memberId}/transactions")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	txs, err := h.store.ListLoyaltyTransactions(r.Context(), memberID, page, size)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "System error listing transactions", "GET", "/loyalty/{memberId}/transactions")
		return
	}
	h.respondJSON(w, http.StatusOK, txs, "GET", "/loyalty/{memberId}/transactions")
}

func (h *Handler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/campaigns"))
	defer timer.ObserveDuration()

	var req struct {
		PartnerID    uuid.UUID             `json:"partner_id"`
		Title        string                `json:"title"`
		Quantitative bool                  `json:"quantitative"`
		MinAllowed   decimal.Decimal       `json:"min_allowed"`
		MaxAllowed   decimal.Decimal       `json:"max_allowed"`
		MaxAmount    decimal.Decimal       `json:"max_amount"`
		StepAmount   decimal.Decimal       `json:"step_amount"`
		StartsAt     time.Time             `json:"starts_at"`
		ExpiresAt    time.Time             `json:"expires_at"`
		RedeemStarts time.Time             `json:"redeem_starts"`
		RedeemEnds   time.Time             `json:"redeem_ends"`
		Redeemable   bool                  `json:"redeemable"`
		Status       domain.CampaignStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/campaigns")
		return
	}

	partner, err := h.store.GetUser(r.Context(), req.PartnerID)
	if err != nil {
		h.respondStoreError(w, err, "POST", "/campaigns")
		return
	}

	campaign := &domain.MicrocreditCampaign{
		Title:        req.Title,
		Quantitative: req.Quantitative,
		MinAllowed:   req.MinAllowed,
		MaxAllowed:   req.MaxAllowed,
		MaxAmount:    req.MaxAmount,
		StepAmount:   req.StepAmount,
		StartsAt:     req.StartsAt,
		ExpiresAt:    req.ExpiresAt,
		RedeemStarts: req.RedeemStarts,
		RedeemEnds:   req.RedeemEnds,
		Redeemable:   req.Redeemable,
		Status:       req.Status,
	}
	if campaign.Status == "" {
		campaign.Status = domain.CampaignDraft
	}
	if err := h.service.CreateCampaign(r.Context(), partner, campaign); err != nil {
		h.respondError(w, http.StatusInternalServerError, "System error creating campaign", "POST", "/campaigns")
		return
	}
	h.respondJSON(w, http.StatusCreated, campaign, "POST", "/campaigns")
}

func (h *Handler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid campaign id", "GET", "/campaigns/{id}")
		return
	}
	campaign, err := h.store.GetCampaign(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "GET", "/campaigns/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, campaign, "GET", "/campaigns/{id}")
}

func (h *Handler) CreatePromiseHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/campaigns/{id}/promises"))
	defer timer.ObserveDuration()

	campaignID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid campaign id", "POST", "/campaigns/{id}/promises")
		return
	}
	var req struct {
		MemberID uuid.UUID       `json:"member_id"`
		Amount   decimal.Decimal `json:"amount"`
		Payment  string          `json:"payment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/campaigns/{id}/promises")
		return
	}

	campaign, err := h.store.GetCampaign(r.Context(), campaignID)
	if err != nil {
		h.respondStoreError(w, err, "POST", "/campaigns/{id}/promises")
		return
	}
	member, err := h.store.GetUser(r.Context(), req.MemberID)
	if err != nil {
		h.respondStoreError(w, err, "POST", "/campaigns/{id}/promises")
		return
	}

	support, tx, err := h.service.CreatePromiseTransaction(r.Context(), campaign, member, req.Amount, req.Payment)
	if err != nil {
		if errors.Is(err, service.ErrAmountOutOfBounds) {
			h.respondError(w, http.StatusUnprocessableEntity, "Amount outside campaign bounds", "POST", "/campaigns/{id}/promises")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "System error recording promise", "POST", "/campaigns/{id}/promises")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]any{"support": support, "transaction": tx}, "POST", "/campaigns/{id}/promises")
}

func (h *Handler) ReceiveFundHandler(w http.ResponseWriter, r *http.Request) {
	h.supportLifecycleHandler(w, r, "/supports/{id}/receive", h.service.CreateReceiveTransaction)
}

func (h *Handler) RevertFundHandler(w http.ResponseWriter, r *http.Request) {
	h.supportLifecycleHandler(w, r, "/supports/{id}/revert", h.service.CreateRevertTransaction)
}

func (h *Handler) supportLifecycleHandler(w http.ResponseWriter, r *http.Request, endpoint string, op func(ctx context.Context, campaign *domain.MicrocreditCampaign, support *domain.MicrocreditSupport) (*domain.MicrocreditTransaction, error)) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	supportID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid support id", "POST", endpoint)
		return
	}
	support, err := h.store.GetSupport(r.Context(), supportID)
	if err != nil {
		h.respondStoreError(w, err, "POST", endpoint)
		return
	}
	campaign, err := h.store.GetCampaign(r.Context(), support.CampaignID)
	if err != nil {
		h.respondStoreError(w, err, "POST", endpoint)
		return
	}

	tx, err := op(r.Context(), campaign, support)
	if err != nil {
		if errors.Is(err, service.ErrSupportNotConfirmed) {
			h.respondError(w, http.StatusUnprocessableEntity, "Support is not in the required state", "POST", endpoint)
			return
		}
		h.respondError(w, http.StatusInternalServerError, "System error recording transaction", "POST", endpoint)
		return
	}
	h.respondJSON(w, http.StatusCreated, tx, "POST", endpoint)
}

func (h *Handler) SpendFundHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/supports/{id}/spend"))
	defer timer.ObserveDuration()

	supportID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid support id", "POST", "/supports/{id}/spend")
		return
	}
	var req struct {
		MemberID uuid.UUID `json:"member_id"`
		Tokens   int64     `json:"tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", "POST", "/supports/{id}/spend")
		return
	}
	if req.Tokens <= 0 {
		h.respondError(w, http.StatusUnprocessableEntity, "Positive tokens required", "POST", "/supports/{id}/spend")
		return
	}

	support, err := h.store.GetSupport(r.Context(), supportID)
	if err != nil {
		h.respondStoreError(w, err, "POST", "/supports/{id}/spend")
		return
	}
	campaign, err := h.store.GetCampaign(r.Context(), support.CampaignID)
	if err != nil {
		h.respondStoreError(w, err, "POST", "/supports/{id}/spend")
		return
	}
	member, err := h.store.GetUser(r.Context(), req.MemberID)
	if err != nil {
		h.respondStoreError(w, err, "POST", "/supports/{id}/spend")
		return
	}

	tx, err := h.service.CreateSpendTransaction(r.Context(), campaign, member, req.Tokens, support)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientTokens) {
			h.respondError(w, http.StatusUnprocessableEntity, "Insufficient tokens", "POST", "/supports/{id}/spend")
			return
		}
		h.respondError(w, http.StatusInternalServerError, "System error recording spend", "POST", "/supports/{id}/spend")
		return
	}
	h.respondJSON(w, http.StatusCreated, tx, "POST", "/supports/{id}/spend")
}

func (h *Handler) GetSupportHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid support id", "GET", "/supports/{id}")
		return
	}
	support, err := h.store.GetSupport(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "GET", "/supports/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, support, "GET", "/supports/{id}")
}

// loadPair fetches the partner and member referenced by a loyalty request.
func (h *Handler) loadPair(w http.ResponseWriter, r *http.Request, partnerID, memberID uuid.UUID, method, endpoint string) (*domain.User, *domain.User, bool) {
	partner, err := h.store.GetUser(r.Context(), partnerID)
	if err != nil {
		h.respondStoreError(w, err, method, endpoint)
		return nil, nil, false
	}
	member, err := h.store.GetUser(r.Context(), memberID)
	if err != nil {
		h.respondStoreError(w, err, method, endpoint)
		return nil, nil, false
	}
	return partner, member, true
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error, method, endpoint string) {
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "Not Found", method, endpoint)
		return
	}
	h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
