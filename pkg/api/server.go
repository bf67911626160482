package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/fracshare/marketd/pkg/engine"
	"github.com/fracshare/marketd/pkg/engine/book"
	"github.com/fracshare/marketd/pkg/engine/ledger"
	"github.com/fracshare/marketd/pkg/util"
)

const defaultTradeLimit = 50

// Server handles the REST API and WebSocket connections.
type Server struct {
	engine      *engine.Engine
	router      *mux.Router
	hub         *Hub
	log         *zap.SugaredLogger
	corsOrigins []string
}

// NewServer creates an API server over the matching engine.
func NewServer(eng *engine.Engine, corsOrigins []string, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:      eng,
		router:      mux.NewRouter(),
		hub:         NewHub(log),
		log:         log,
		corsOrigins: corsOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Listing endpoints
	api.HandleFunc("/listings", s.handleGetListings).Methods("GET")
	api.HandleFunc("/listings/{propertyId}", s.handleGetListing).Methods("GET")
	api.HandleFunc("/listings/{propertyId}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/listings/{propertyId}/trades", s.handleGetTrades).Methods("GET")

	// Investor endpoints
	api.HandleFunc("/investors/{investorId}/wallet", s.handleGetWallet).Methods("GET")
	api.HandleFunc("/investors/{investorId}/positions", s.handleGetPositions).Methods("GET")
	api.HandleFunc("/investors/{investorId}/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/investors/{investorId}/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/investors/{investorId}/shares", s.handleGrantShares).Methods("POST")

	// Trading
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wired HTTP handler including CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub and serves HTTP on addr, blocking.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	listings := s.engine.Listings()
	response := make([]ListingInfo, len(listings))
	for i, l := range listings {
		response[i] = s.listingInfo(l.PropertyID, l.Name, l.TotalShares, l.MinOrderShares, l.MaxOrderShares, l.Status.String())
	}
	respondJSON(w, response)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	propertyID := mux.Vars(r)["propertyId"]
	l, err := s.engine.Listing(propertyID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, s.listingInfo(l.PropertyID, l.Name, l.TotalShares, l.MinOrderShares, l.MaxOrderShares, l.Status.String()))
}

func (s *Server) listingInfo(propertyID, name string, total, min, max int64, status string) ListingInfo {
	info := ListingInfo{
		PropertyID:     propertyID,
		Name:           name,
		TotalShares:    total,
		MinOrderShares: min,
		MaxOrderShares: max,
		Status:         status,
	}
	if b, err := s.engine.Book(propertyID); err == nil {
		if last := b.LastPrice(); last > 0 {
			info.LastPrice = util.FormatMoney(last)
		}
	}
	return info
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	propertyID := mux.Vars(r)["propertyId"]
	b, err := s.engine.Book(propertyID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, bookSnapshot(propertyID, b))
}

func bookSnapshot(propertyID string, b *book.Book) BookSnapshot {
	return BookSnapshot{
		PropertyID: propertyID,
		Bids:       priceLevels(b.BidLevels()),
		Asks:       priceLevels(b.AskLevels()),
		Timestamp:  time.Now().UnixMilli(),
	}
}

func priceLevels(levels []book.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: util.FormatMoney(l.Price), Shares: l.Shares}
	}
	return out
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	propertyID := mux.Vars(r)["propertyId"]

	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}

	trades, err := s.engine.RecentTrades(propertyID, limit)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = tradeInfo(t)
	}
	respondJSON(w, response)
}

func tradeInfo(t *ledger.Trade) TradeInfo {
	return TradeInfo{
		ID:         t.ID,
		PropertyID: t.PropertyID,
		Price:      util.FormatMoney(t.Price),
		Shares:     t.Shares,
		ExecutedAt: t.ExecutedAt,
	}
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	investorID := mux.Vars(r)["investorId"]
	wallet := s.engine.Wallet(investorID)
	respondJSON(w, WalletInfo{
		InvestorID:     investorID,
		Balance:        util.FormatMoney(wallet.Balance),
		CommittedFunds: util.FormatMoney(wallet.CommittedFunds),
		Available:      util.FormatMoney(wallet.Available()),
	})
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	investorID := mux.Vars(r)["investorId"]
	positions, err := s.engine.Positions(investorID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load positions", err.Error())
		return
	}

	response := make([]PositionInfo, 0, len(positions))
	for _, p := range positions {
		if p.OwnedShares == 0 {
			continue
		}
		response = append(response, PositionInfo{
			PropertyID:      p.PropertyID,
			OwnedShares:     p.OwnedShares,
			CommittedShares: p.CommittedShares,
			AvailableShares: p.Available(),
		})
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	investorID := mux.Vars(r)["investorId"]
	orders, err := s.engine.Orders(investorID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load orders", err.Error())
		return
	}

	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = orderInfo(o)
	}
	respondJSON(w, response)
}

func orderInfo(o *book.Order) OrderInfo {
	return OrderInfo{
		ID:         o.ID,
		PropertyID: o.PropertyID,
		Side:       o.Side.String(),
		Price:      util.FormatMoney(o.Price),
		Shares:     o.Shares,
		Filled:     o.Filled,
		Remaining:  o.Remaining(),
		Status:     o.Status.String(),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	side, err := book.SideFromString(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", req.Side)
		return
	}
	price, err := util.ParseMoney(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price", err.Error())
		return
	}

	order, trades, err := s.engine.SubmitOrder(req.InvestorID, req.PropertyID, side, req.Shares, price)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}

	tradeInfos := make([]TradeInfo, len(trades))
	for i, t := range trades {
		tradeInfos[i] = tradeInfo(t)
	}
	respondStatusJSON(w, http.StatusCreated, SubmitOrderResponse{
		Order:  orderInfo(order),
		Trades: tradeInfos,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.OrderID == "" || req.InvestorID == "" {
		respondError(w, http.StatusBadRequest, "missing investorId or orderId", "")
		return
	}

	order, err := s.engine.CancelOrder(req.InvestorID, req.OrderID)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(order))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	investorID := mux.Vars(r)["investorId"]

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	amount, err := util.ParseMoney(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}
	if amount <= 0 {
		respondError(w, http.StatusBadRequest, "amount must be positive", req.Amount)
		return
	}

	if err := s.engine.Deposit(investorID, amount); err != nil {
		s.respondEngineError(w, err)
		return
	}

	wallet := s.engine.Wallet(investorID)
	respondJSON(w, WalletInfo{
		InvestorID:     investorID,
		Balance:        util.FormatMoney(wallet.Balance),
		CommittedFunds: util.FormatMoney(wallet.CommittedFunds),
		Available:      util.FormatMoney(wallet.Available()),
	})
}

func (s *Server) handleGrantShares(w http.ResponseWriter, r *http.Request) {
	investorID := mux.Vars(r)["investorId"]

	var req GrantSharesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Shares <= 0 {
		respondError(w, http.StatusBadRequest, "shares must be positive", "")
		return
	}

	if err := s.engine.GrantShares(investorID, req.PropertyID, req.Shares); err != nil {
		s.respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast methods (wired as engine hooks)
// ==============================

// BroadcastBook pushes the current depth snapshot to book channel
// subscribers.
func (s *Server) BroadcastBook(propertyID string) {
	b, err := s.engine.Book(propertyID)
	if err != nil {
		return
	}
	snap := bookSnapshot(propertyID, b)
	s.hub.BroadcastToChannel("book:"+propertyID, BookUpdate{
		Type:       "book",
		PropertyID: propertyID,
		Bids:       snap.Bids,
		Asks:       snap.Asks,
		Timestamp:  snap.Timestamp,
	})
}

// BroadcastTrade pushes a settled trade to trades channel subscribers.
func (s *Server) BroadcastTrade(t *ledger.Trade) {
	s.hub.BroadcastToChannel("trades:"+t.PropertyID, TradeUpdate{
		Type:       "trade",
		PropertyID: t.PropertyID,
		Price:      util.FormatMoney(t.Price),
		Shares:     t.Shares,
		ExecutedAt: t.ExecutedAt,
	})
}

// ==============================
// Helpers
// ==============================

// respondEngineError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
	case errors.Is(err, engine.ErrUnknownProperty):
		respondError(w, http.StatusNotFound, "unknown property", err.Error())
	case errors.Is(err, engine.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, engine.ErrForbidden):
		respondError(w, http.StatusForbidden, "not order owner", err.Error())
	case errors.Is(err, engine.ErrAlreadyTerminal):
		respondError(w, http.StatusConflict, "order already terminal", err.Error())
	case errors.Is(err, engine.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, "insufficient funds", err.Error())
	case errors.Is(err, engine.ErrInsufficientShares):
		respondError(w, http.StatusUnprocessableEntity, "insufficient shares", err.Error())
	default:
		s.log.Errorw("internal_error", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatusJSON(w, http.StatusOK, data)
}

func respondStatusJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondStatusJSON(w, status, ErrorResponse{Error: error, Message: message})
}
