package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/pkg/app/core/asset"
	"github.com/uhyunpark/hypermarket/pkg/app/core/ledger"
	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
	"github.com/uhyunpark/hypermarket/pkg/app/core/transaction"
	"github.com/uhyunpark/hypermarket/pkg/app/nft"
	"github.com/uhyunpark/hypermarket/pkg/storage"
)

const (
	maxBodyBytes     = 1 << 20
	defaultSalesPage = 20
	maxSalesPage     = 100
)

// Config tunes the API server
type Config struct {
	Logger         *zap.SugaredLogger
	Gatherer       prometheus.Gatherer // nil: /metrics is not served
	AllowedOrigins []string            // CORS origins; empty allows localhost dev ports
}

// Server handles REST API and WebSocket connections
type Server struct {
	app      *nft.App
	router   *mux.Router
	hub      *Hub // WebSocket hub
	log      *zap.SugaredLogger
	gatherer prometheus.Gatherer
	origins  []string
}

// NewServer creates a new API server and subscribes it to executed blocks
func NewServer(app *nft.App, cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:3001"}
	}

	s := &Server{
		app:      app,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
		gatherer: cfg.Gatherer,
		origins:  origins,
	}

	s.setupRoutes()
	app.SetBlockHandler(s.PublishBlock)
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Marketplace state
	api.HandleFunc("/orders/{collection}/{instance}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/bids/{collection}/{instance}", s.handleGetBid).Methods("GET")
	api.HandleFunc("/version", s.handleGetVersion).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")

	// Ledger endpoints
	api.HandleFunc("/assets/{collection}/{instance}/owner", s.handleGetOwner).Methods("GET")
	api.HandleFunc("/assets/{collection}/{instance}/sales", s.handleGetSales).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances/{denom}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods("GET")

	// Chain endpoints
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")

	// Transaction submission
	api.HandleFunc("/txs", s.handleSubmitTx).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
}

// Handler is the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the WebSocket hub and serves addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Infow("api_server_starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(w, r)
	if !ok {
		return
	}
	order, err := s.app.QueryOrder(key)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, order)
}

func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(w, r)
	if !ok {
		return
	}
	bid, err := s.app.QueryBid(key)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, bid)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, VersionInfo{Version: market.Version})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.app.QueryConfig()
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, cfg)
}

func (s *Server) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(w, r)
	if !ok {
		return
	}
	owner, err := s.app.QueryOwner(key)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, OwnerInfo{
		Collection: key.Collection.Hex(),
		Instance:   key.Instance,
		Owner:      owner.Hex(),
	})
}

func (s *Server) handleGetSales(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(w, r)
	if !ok {
		return
	}

	limit := defaultSalesPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		limit = min(n, maxSalesPage)
	}

	sales, err := s.app.QuerySales(key, limit)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	if sales == nil {
		sales = []*market.Sale{}
	}
	respondJSON(w, SalesPage{
		Collection: key.Collection.Hex(),
		Instance:   key.Instance,
		Sales:      sales,
	})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	balances, err := s.app.QueryBalances(addr)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}

	response := make([]BalanceInfo, 0, len(balances))
	for denom, amount := range balances {
		response = append(response, BalanceInfo{
			Address: addr.Hex(),
			Denom:   denom,
			Amount:  amount.Dec(),
		})
	}
	slices.SortFunc(response, func(a, b BalanceInfo) int { return strings.Compare(a.Denom, b.Denom) })
	respondJSON(w, response)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, ok := parseAddress(w, vars["address"])
	if !ok {
		return
	}
	info := parseDenom(vars["denom"])

	amount, err := s.app.QueryBalance(addr, info)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{
		Address: addr.Hex(),
		Denom:   info.Key(),
		Amount:  amount.Dec(),
	})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	nonce, err := s.app.QueryNonce(addr)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	respondJSON(w, NonceInfo{Address: addr.Hex(), Nonce: nonce})
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	paused, err := s.app.QueryPaused()
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	hash := s.app.AppHash()

	respondJSON(w, ChainStatus{
		Height:      s.app.Height(),
		AppHash:     "0x" + hex.EncodeToString(hash[:]),
		ChainID:     s.app.ChainID().String(),
		Paused:      paused,
		MempoolSize: s.app.PendingTxs(),
	})
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	// Read signed transaction body
	bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "failed to read body", err.Error())
		return
	}

	tx, err := s.app.SubmitTx(bodyBytes)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, transaction.ErrSignerMismatch):
			status = http.StatusUnauthorized
		case errors.Is(err, ledger.ErrStaleNonce):
			status = http.StatusConflict
		}
		respondError(w, status, "transaction rejected", err.Error())
		return
	}

	hash := crypto.Keccak256Hash(bodyBytes).Hex()
	s.log.Infow("tx_submitted",
		"hash", hash,
		"sender", tx.Sender.Hex(),
		"nonce", tx.Nonce,
		"action", tx.Action(),
		"bytes", len(bodyBytes),
	)

	respondJSONStatus(w, http.StatusAccepted, SubmitTxResponse{
		Status: "submitted",
		Hash:   hash,
		Sender: tx.Sender.Hex(),
		Nonce:  tx.Nonce,
		Action: tx.Action(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the app)
// ==============================

// PublishBlock fans an executed block out to WebSocket clients: the
// whole block on the events channel, and each tx on its asset channel
func (s *Server) PublishBlock(b nft.BlockOutcome) {
	s.hub.BroadcastToChannel(ChannelEvents, WSMessage{Type: "block", Height: b.Height, Data: b})
	for _, tx := range b.Txs {
		if tx.Key == nil {
			continue
		}
		s.hub.BroadcastToChannel(AssetChannel(*tx.Key), WSMessage{Type: "tx", Height: b.Height, Data: tx})
	}
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) respondQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrNoOrder), errors.Is(err, market.ErrNoBid), errors.Is(err, ledger.ErrUnknownAsset):
		respondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, storage.ErrNotInstantiated):
		respondError(w, http.StatusServiceUnavailable, "marketplace not instantiated", "")
	default:
		s.log.Errorw("query_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "query failed", err.Error())
	}
}

func parseKey(w http.ResponseWriter, r *http.Request) (market.Key, bool) {
	vars := mux.Vars(r)
	collection, ok := parseAddress(w, vars["collection"])
	if !ok {
		return market.Key{}, false
	}
	if vars["instance"] == "" {
		respondError(w, http.StatusBadRequest, "missing token id", "")
		return market.Key{}, false
	}
	return market.Key{Collection: collection, Instance: vars["instance"]}, true
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// parseDenom reads a hex contract address as a token, anything else as
// a native denom
func parseDenom(s string) asset.Info {
	if common.IsHexAddress(s) {
		return asset.Token{Contract: common.HexToAddress(s)}
	}
	return asset.NativeToken{Denom: s}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
