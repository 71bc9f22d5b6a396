package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/escrowdex/pkg/app/core/eventlog"
	"github.com/uhyunpark/escrowdex/pkg/app/core/exchange"
	"github.com/uhyunpark/escrowdex/pkg/app/core/ledger"
	"github.com/uhyunpark/escrowdex/pkg/app/core/mempool"
	"github.com/uhyunpark/escrowdex/pkg/app/dex"
	"github.com/uhyunpark/escrowdex/pkg/storage"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	maxTxBody         = 64 << 10
)

// Config tunes the HTTP surface
type Config struct {
	AllowedOrigins []string
	// TxJournal records every accepted submission, one line each
	TxJournal storage.Journal
	Logger    *zap.SugaredLogger
}

// Server handles REST API and WebSocket connections
type Server struct {
	app     *dex.App
	store   storage.Store // block history; nil disables history routes
	router  *mux.Router
	hub     *Hub
	journal storage.Journal
	log     *zap.SugaredLogger
	origins []string
	http    *http.Server
}

// NewServer creates a new API server
func NewServer(app *dex.App, store storage.Store, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.TxJournal == nil {
		cfg.TxJournal = storage.NewNopJournal()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}

	s := &Server{
		app:     app,
		store:   store,
		router:  mux.NewRouter(),
		hub:     NewHub(cfg.Logger.Named("ws")),
		journal: cfg.TxJournal,
		log:     cfg.Logger,
		origins: cfg.AllowedOrigins,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Transactions
	api.HandleFunc("/txs", s.handleSubmitTx).Methods("POST")
	api.HandleFunc("/txs/{hash}", s.handleGetReceipt).Methods("GET")

	// Exchange
	api.HandleFunc("/exchange", s.handleGetExchange).Methods("GET")
	api.HandleFunc("/balances/{asset}/{account}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/status", s.handleGetOrderStatus).Methods("GET")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// Asset ledgers
	api.HandleFunc("/tokens/{asset}", s.handleGetToken).Methods("GET")
	api.HandleFunc("/tokens/{asset}/balances/{owner}", s.handleGetTokenBalance).Methods("GET")
	api.HandleFunc("/tokens/{asset}/allowances/{owner}/{spender}", s.handleGetAllowance).Methods("GET")
	api.HandleFunc("/native/{account}", s.handleGetNativeBalance).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{account}/nonce", s.handleGetNonce).Methods("GET")
	api.HandleFunc("/accounts/{account}/events", s.handleGetAccountEvents).Methods("GET")

	// Chain endpoints
	api.HandleFunc("/chain/status", s.handleGetChainStatus).Methods("GET")
	api.HandleFunc("/blocks/{height:[0-9]+}", s.handleGetBlock).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Hub is the WebSocket fan-out; register it as a sequencer publisher
func (s *Server) Hub() *Hub { return s.hub }

// Handler is the router wrapped in CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves on addr until Shutdown; the hub stops with ctx
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Infow("api_server_starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ==============================
// Transactions
// ==============================

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTxBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_transaction", "failed to read body")
		return
	}
	if len(body) > maxTxBody {
		respondError(w, http.StatusRequestEntityTooLarge, "invalid_transaction", "transaction too large")
		return
	}

	hash, err := s.app.SubmitTx(body)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	s.journal.Append(fmt.Sprintf("%s submit tx=%s bytes=%d", time.Now().UTC().Format(time.RFC3339), hash.Hex(), len(body)))
	s.log.Debugw("tx_submitted", "tx", hash.Hex(), "bytes", len(body))

	respondJSONStatus(w, http.StatusAccepted, SubmitTxResponse{Status: "submitted", TxHash: hash})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHash(w, mux.Vars(r)["hash"])
	if !ok {
		return
	}
	if rec, ok := s.app.Receipt(hash); ok {
		respondJSON(w, rec)
		return
	}
	if s.store != nil {
		rec, ok, err := s.store.Receipt(hash)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		if ok {
			respondJSON(w, rec)
			return
		}
	}
	respondError(w, http.StatusNotFound, "not_found", "no receipt for "+hash.Hex())
}

// ==============================
// Exchange
// ==============================

func (s *Server) handleGetExchange(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.app.Exchange())
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset, ok := parseAddress(w, vars["asset"])
	if !ok {
		return
	}
	account, ok := parseAddress(w, vars["account"])
	if !ok {
		return
	}
	respondJSON(w, BalanceResponse{Asset: asset, Account: account, Balance: s.app.BalanceOf(asset, account)})
}

// handleGetOrders lists orders, optionally by ?status= and ?maker=
func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := exchange.Status(q.Get("status"))
	switch status {
	case "", exchange.StatusOpen, exchange.StatusFilled, exchange.StatusCancelled:
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "unknown status "+string(status))
		return
	}

	orders := s.app.Orders(status)
	if m := q.Get("maker"); m != "" {
		maker, ok := parseAddress(w, m)
		if !ok {
			return
		}
		filtered := orders[:0]
		for _, o := range orders {
			if o.Maker == maker {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	if orders == nil {
		orders = []dex.OrderView{}
	}
	respondJSON(w, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	o, found := s.app.Order(id)
	if !found {
		respondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("order %d not found", id))
		return
	}
	respondJSON(w, o)
}

func (s *Server) handleGetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	o, found := s.app.Order(id)
	if !found {
		respondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("order %d not found", id))
		return
	}
	respondJSON(w, OrderStatusResponse{
		ID:        id,
		Status:    string(o.Status),
		Filled:    o.Status == exchange.StatusFilled,
		Cancelled: o.Status == exchange.StatusCancelled,
	})
}

// handleGetTrades lists settled fills, optionally for one ?account= (as
// maker or taker).
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.app.Trades()
	if a := r.URL.Query().Get("account"); a != "" {
		account, ok := parseAddress(w, a)
		if !ok {
			return
		}
		filtered := trades[:0]
		for _, t := range trades {
			if t.Maker == account || t.Taker == account {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	}
	if trades == nil {
		trades = []exchange.Trade{}
	}
	respondJSON(w, trades)
}

// handleGetEvents pages the committed log with ?from=, ?limit= and ?kind=
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseUintParam(q.Get("from"), 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "bad from: "+err.Error())
		return
	}
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}
	kind := eventlog.Kind(q.Get("kind"))

	events := s.app.Events(from, limit, kind)
	next := from
	if len(events) > 0 {
		next = events[len(events)-1].Seq + 1
	}
	if events == nil {
		events = []eventlog.Record{}
	}
	respondJSON(w, EventsResponse{Events: events, Next: next})
}

// ==============================
// Asset ledgers
// ==============================

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	asset, ok := parseAddress(w, mux.Vars(r)["asset"])
	if !ok {
		return
	}
	info, found := s.app.Token(asset)
	if !found {
		respondError(w, http.StatusNotFound, "invalid_asset", "unknown token "+asset.Hex())
		return
	}
	respondJSON(w, info)
}

func (s *Server) handleGetTokenBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset, ok := parseAddress(w, vars["asset"])
	if !ok {
		return
	}
	owner, ok := parseAddress(w, vars["owner"])
	if !ok {
		return
	}
	bal, found := s.app.TokenBalance(asset, owner)
	if !found {
		respondError(w, http.StatusNotFound, "invalid_asset", "unknown token "+asset.Hex())
		return
	}
	respondJSON(w, TokenBalanceResponse{Token: asset, Owner: owner, Balance: bal})
}

func (s *Server) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset, ok := parseAddress(w, vars["asset"])
	if !ok {
		return
	}
	owner, ok := parseAddress(w, vars["owner"])
	if !ok {
		return
	}
	spender, ok := parseAddress(w, vars["spender"])
	if !ok {
		return
	}
	amt, found := s.app.Allowance(asset, owner, spender)
	if !found {
		respondError(w, http.StatusNotFound, "invalid_asset", "unknown token "+asset.Hex())
		return
	}
	respondJSON(w, AllowanceResponse{Token: asset, Owner: owner, Spender: spender, Allowance: amt})
}

func (s *Server) handleGetNativeBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(w, mux.Vars(r)["account"])
	if !ok {
		return
	}
	respondJSON(w, NativeBalanceResponse{Account: account, Balance: s.app.NativeBalance(account)})
}

// ==============================
// Accounts and chain
// ==============================

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	account, ok := parseAddress(w, mux.Vars(r)["account"])
	if !ok {
		return
	}
	respondJSON(w, NonceResponse{Account: account, Nonce: s.app.Nonce(account)})
}

// handleGetAccountEvents serves the persisted per-account index, newest first
func (s *Server) handleGetAccountEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "block store disabled")
		return
	}
	account, ok := parseAddress(w, mux.Vars(r)["account"])
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}
	events, err := s.store.AccountEvents(account, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if events == nil {
		events = []eventlog.Record{}
	}
	respondJSON(w, events)
}

func (s *Server) handleGetChainStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.app.Status())
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "block store disabled")
		return
	}
	height, err := strconv.ParseInt(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "bad height")
		return
	}
	b, found, err := s.store.GetBlock(height)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("block %d not found", height))
		return
	}
	txs := make([]string, len(b.Txs))
	for i, tx := range b.Txs {
		txs[i] = string(tx)
	}
	respondJSON(w, BlockResponse{
		Height:     b.Height,
		Time:       b.Time,
		Hash:       storage.HashOfBlock(b),
		ParentHash: b.ParentHash,
		AppHash:    b.AppHash,
		Txs:        txs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, kind string, message string) {
	respondJSONStatus(w, status, ErrorResponse{
		Error:   kind,
		Message: message,
	})
}

// statusOf maps a failure kind to the HTTP status it is served with
func statusOf(err error) int {
	if errors.Is(err, mempool.ErrFull) {
		return http.StatusServiceUnavailable
	}
	switch ledger.KindOf(err) {
	case ledger.KindInvalidTransaction:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindUnauthorized:
		return http.StatusForbidden
	case ledger.KindAlreadyFinalized:
		return http.StatusConflict
	case ledger.KindInsufficientBalance, ledger.KindInvalidAsset, ledger.KindInvalidRecipient,
		ledger.KindNotPayable, ledger.KindOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondLedgerError(w http.ResponseWriter, err error) {
	kind := ledger.KindOf(err).String()
	if errors.Is(err, mempool.ErrFull) {
		kind = "mempool_full"
	}
	respondError(w, statusOf(err), kind, err.Error())
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid address "+s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseHash(w http.ResponseWriter, s string) (common.Hash, bool) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid tx hash "+s)
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

func parseOrderID(w http.ResponseWriter, s string) (uint64, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order id "+s)
		return 0, false
	}
	return id, true
}

func parseUintParam(s string, def uint64) (uint64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseLimit(w http.ResponseWriter, s string) (int, bool) {
	limit, err := parseUintParam(s, defaultEventLimit)
	if err != nil || limit == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "bad limit "+s)
		return 0, false
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	return int(limit), true
}
