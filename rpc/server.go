package rpc

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"giftledger/config"
	"giftledger/native/gift"
	"giftledger/native/treasury"
)

// Server exposes the read-only ledger surface over HTTP. All mutation goes
// through the engines directly; this layer only renders state.
type Server struct {
	engine   *gift.Engine
	splitter *treasury.Splitter
	logger   *slog.Logger
}

// NewServer wires the ledger views. The splitter is optional.
func NewServer(engine *gift.Engine, splitter *treasury.Splitter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, splitter: splitter, logger: logger}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/gifts", s.handleGiftCount)
		r.Get("/gifts/{id}", s.handleGift)
		r.Get("/accounts/{address}", s.handleAccount)
		r.Get("/assets", s.handleAssets)
		r.Get("/commission/{asset}", s.handleCommission)
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		s.logger.Info("request",
			slog.String("id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type giftResponse struct {
	ID             uint64 `json:"id"`
	Giver          string `json:"giver"`
	Receiver       string `json:"receiver"`
	Asset          string `json:"asset"`
	Amount         string `json:"amount"`
	AmountUSD      string `json:"amountInUSD"`
	CreatedAtBlock uint64 `json:"createdAtBlock"`
	CreatedAtTime  int64  `json:"createdAtTime"`
	Status         string `json:"status"`
}

func (s *Server) handleGiftCount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"count": s.engine.GiftsCount()})
}

func (s *Server) handleGift(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid gift id")
		return
	}
	g, err := s.engine.GiftByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, giftResponse{
		ID:             g.ID,
		Giver:          hexAddr(g.Giver),
		Receiver:       hexAddr(g.Receiver),
		Asset:          hexAddr(g.Asset),
		Amount:         g.Amount.String(),
		AmountUSD:      g.AmountUSD.String(),
		CreatedAtBlock: g.CreatedAtBlock,
		CreatedAtTime:  g.CreatedAtTime,
		Status:         g.Status.String(),
	})
}

type accountResponse struct {
	GivenGifts             []uint64 `json:"givenGifts"`
	ReceivedGifts          []uint64 `json:"receivedGifts"`
	TotalTurnoverUSD       string   `json:"totalTurnoverUSD"`
	TotalCommissionPaidUSD string   `json:"totalCommissionPaidUSD"`
	OverpaidNative         string   `json:"overpaidNative"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := config.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	acc, err := s.engine.Account(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		GivenGifts:             acc.GivenGifts,
		ReceivedGifts:          acc.ReceivedGifts,
		TotalTurnoverUSD:       acc.TotalTurnoverUSD.String(),
		TotalCommissionPaidUSD: acc.TotalCommissionPaidUSD.String(),
		OverpaidNative:         acc.OverpaidNative.String(),
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, _ *http.Request) {
	assets := s.engine.AllowedAssets()
	rendered := make([]string, 0, len(assets))
	for _, asset := range assets {
		rendered = append(rendered, hexAddr(asset))
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": rendered})
}

func (s *Server) handleCommission(w http.ResponseWriter, r *http.Request) {
	asset, err := config.ParseAddress(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":   hexAddr(asset),
		"balance": s.engine.CommissionBalance(asset).String(),
	})
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
