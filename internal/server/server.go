package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"gridLadder/internal/engine"
	"gridLadder/internal/fixedpoint"
	"gridLadder/internal/journal"
	"gridLadder/internal/metrics"
	"gridLadder/internal/model"
)

// Server exposes one engine instance over HTTP.
type Server struct {
	httpServer *http.Server
	engine     *engine.Engine
	sink       journal.Sink
	instanceID string
	logger     *zap.Logger
}

// NewServer builds the API server bound to addr.
func NewServer(addr string, eng *engine.Engine, sink journal.Sink, instanceID string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = journal.Discard{}
	}
	s := &Server{
		engine:     eng,
		sink:       sink,
		instanceID: instanceID,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/rungs", s.handleRungs)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/spot", s.handleSpot)
	mux.HandleFunc("/api/preview", s.handlePreview)
	mux.HandleFunc("/api/buy", s.handleBuy)
	mux.HandleFunc("/api/sell", s.handleSell)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type rungView struct {
	Capacity string `json:"capacity"`
	Filled   string `json:"filled"`
	Price    string `json:"price"`
}

type statusView struct {
	InstanceID       string `json:"instance_id"`
	Initialized      bool   `json:"initialized"`
	Cursor           int    `json:"cursor"`
	TotalBaseSold    string `json:"total_base_sold"`
	AverageSellPrice string `json:"average_sell_price"`
	BaseToken        string `json:"base_token"`
	QuoteToken       string `json:"quote_token"`
	Owner            string `json:"owner"`
	EngineAccount    string `json:"engine_account"`
}

type tradeRequest struct {
	Caller   string `json:"caller"`
	AmountIn string `json:"amount_in"`
	MinOut   string `json:"min_out"`
	Deadline int64  `json:"deadline"`
}

type tradeResponse struct {
	Spent     string `json:"spent"`
	Delivered string `json:"delivered"`
	Cursor    int    `json:"cursor"`
	Reset     bool   `json:"ladder_reset,omitempty"`
}

func (s *Server) handleRungs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rungs := s.engine.Rungs()
	views := make([]rungView, len(rungs))
	for i, rung := range rungs {
		views[i] = rungView{
			Capacity: rung.Capacity.String(),
			Filled:   rung.Filled.String(),
			Price:    rung.Price.String(),
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pair := s.engine.Pair()
	writeJSON(w, http.StatusOK, statusView{
		InstanceID:       s.instanceID,
		Initialized:      s.engine.Initialized(),
		Cursor:           s.engine.Cursor(),
		TotalBaseSold:    s.engine.TotalBaseSold().String(),
		AverageSellPrice: s.engine.AverageSellPrice().String(),
		BaseToken:        pair.BaseToken.Hex(),
		QuoteToken:       pair.QuoteToken.Hex(),
		Owner:            s.engine.Owner().Hex(),
		EngineAccount:    s.engine.Account().Hex(),
	})
}

func (s *Server) handleSpot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	spot, err := s.engine.CurrentSpotPrice(r.Context())
	if err != nil {
		writeError(w, "spot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"price": spot.String()})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	quoteIn, ok := parseAmount(r.URL.Query().Get("quote_in"))
	if !ok {
		http.Error(w, "invalid quote_in", http.StatusBadRequest)
		return
	}
	out, touched, err := s.engine.PreviewBuy(quoteIn)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"base_out":      out.String(),
		"rungs_touched": touched,
	})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	req, caller, amountIn, minOut, ok := s.decodeTrade(w, r)
	if !ok {
		return
	}

	res, err := s.engine.Buy(r.Context(), caller, amountIn, minOut, req.Deadline)
	if err != nil {
		metrics.RecordRejection("buy", reason(err))
		writeError(w, "buy", err)
		return
	}
	metrics.RecordBuy(res.Cursor)
	s.journal(model.SideBuy, caller, res.BaseDelivered, res.QuoteSpent, res.Cursor, false)

	writeJSON(w, http.StatusOK, tradeResponse{
		Spent:     res.QuoteSpent.String(),
		Delivered: res.BaseDelivered.String(),
		Cursor:    res.Cursor,
	})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	req, caller, amountIn, minOut, ok := s.decodeTrade(w, r)
	if !ok {
		return
	}

	res, err := s.engine.Sell(r.Context(), caller, amountIn, minOut, req.Deadline)
	if err != nil {
		metrics.RecordRejection("sell", reason(err))
		writeError(w, "sell", err)
		return
	}
	metrics.RecordSell(res.LadderReset)
	s.journal(model.SideSell, caller, res.BaseSpent, res.QuoteDelivered, s.engine.Cursor(), res.LadderReset)

	writeJSON(w, http.StatusOK, tradeResponse{
		Spent:     res.BaseSpent.String(),
		Delivered: res.QuoteDelivered.String(),
		Cursor:    s.engine.Cursor(),
		Reset:     res.LadderReset,
	})
}

func (s *Server) decodeTrade(w http.ResponseWriter, r *http.Request) (tradeRequest, common.Address, *big.Int, *big.Int, bool) {
	var req tradeRequest
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return req, common.Address{}, nil, nil, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
		return req, common.Address{}, nil, nil, false
	}
	if !common.IsHexAddress(req.Caller) {
		http.Error(w, "invalid caller address", http.StatusBadRequest)
		return req, common.Address{}, nil, nil, false
	}
	amountIn, ok := parseAmount(req.AmountIn)
	if !ok {
		http.Error(w, "invalid amount_in", http.StatusBadRequest)
		return req, common.Address{}, nil, nil, false
	}
	minOut := new(big.Int)
	if req.MinOut != "" {
		if minOut, ok = parseAmount(req.MinOut); !ok {
			http.Error(w, "invalid min_out", http.StatusBadRequest)
			return req, common.Address{}, nil, nil, false
		}
	}
	return req, common.HexToAddress(req.Caller), amountIn, minOut, true
}

func (s *Server) journal(side string, caller common.Address, baseAmount, quoteAmount *big.Int, cursor int, reset bool) {
	pair := s.engine.Pair()
	record := model.TradeRecord{
		InstanceID:  s.instanceID,
		Side:        side,
		Caller:      caller.Hex(),
		BaseAmount:  fixedpoint.FormatUnits(baseAmount, pair.BaseDecimals),
		QuoteAmount: fixedpoint.FormatUnits(quoteAmount, pair.QuoteDecimals),
		Cursor:      cursor,
		LadderReset: reset,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.sink.PutTradeBatch([]model.TradeRecord{record}); err != nil {
		s.logger.Warn("journal write failed", zap.Error(err))
	}
}

func parseAmount(raw string) (*big.Int, bool) {
	if raw == "" {
		return nil, false
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, false
	}
	return value, true
}

func reason(err error) string {
	switch {
	case errors.Is(err, engine.ErrExpired):
		return "expired"
	case errors.Is(err, engine.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, engine.ErrSlippage):
		return "slippage"
	case errors.Is(err, engine.ErrNoInventorySold):
		return "no_inventory_sold"
	case errors.Is(err, engine.ErrDeltaUnderflow), errors.Is(err, engine.ErrRebuyStartZero):
		return "underflow"
	case errors.Is(err, engine.ErrTransfer):
		return "transfer"
	default:
		return "other"
	}
}

func writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrExpired),
		errors.Is(err, engine.ErrZeroAmount),
		errors.Is(err, engine.ErrSlippage),
		errors.Is(err, engine.ErrNoInventorySold),
		errors.Is(err, engine.ErrDeltaUnderflow),
		errors.Is(err, engine.ErrRebuyStartZero),
		errors.Is(err, engine.ErrNotInitialized):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrTransfer):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"op": op, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
