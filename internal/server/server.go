package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"linkrails/internal/apikey"
	"linkrails/internal/config"
	"linkrails/internal/linker"
	"linkrails/internal/ratelimit"
	"linkrails/internal/wallet"
)

// LinkCreator is the slice of the workflow the HTTP layer depends on.
type LinkCreator interface {
	CreateLink(ctx context.Context, req linker.LinkRequest) (linker.IssuanceResult, error)
}

type Server struct {
	cfg        *config.AppConfig
	workflow   LinkCreator
	guard      *apikey.Guard
	limiter    *ratelimit.Limiter
	metrics    *metricsRegistry
	httpServer *http.Server
	log        *logrus.Logger

	rpcHealthFn func(context.Context) error
}

func NewServer(cfg *config.AppConfig, wf LinkCreator, rpcHealth func(context.Context) error, log *logrus.Logger) *Server {
	metrics := newMetricsRegistry()

	limiter := ratelimit.New(cfg.Service.RateLimitMax, cfg.Service.RateLimitWindow)
	limiter.OnReject = metrics.incRateLimited

	s := &Server{
		cfg:         cfg,
		workflow:    wf,
		guard:       &apikey.Guard{Key: cfg.Service.APIKey},
		limiter:     limiter,
		metrics:     metrics,
		log:         log,
		rpcHealthFn: rpcHealth,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/create-link", s.guard.Middleware(s.limiter.Middleware(http.HandlerFunc(s.handleCreateLink))))
	mux.Handle("/metrics", metrics.handler())

	handler := s.recoveryMiddleware(s.loggingMiddleware(mux))

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(handler),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("API listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type createLinkRequest struct {
	Amount    json.Number `json:"amount"`
	TokenType *int        `json:"tokenType"`
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}

	var payload createLinkRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		s.metrics.incIssuance("invalid")
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	req, err := payload.toLinkRequest()
	if err != nil {
		s.metrics.incIssuance("invalid")
		writeError(w, http.StatusBadRequest, "Invalid amount: must be a positive number.")
		return
	}

	result, err := s.workflow.CreateLink(r.Context(), req)
	if err != nil {
		s.respondWorkflowError(w, r, err)
		return
	}

	s.metrics.incIssuance("created")
	s.metrics.addBroadcasts(len(result.TxHashes))
	writeJSON(w, http.StatusOK, result)
}

func (p createLinkRequest) toLinkRequest() (linker.LinkRequest, error) {
	amount, err := decimalFromNumber(p.Amount)
	if err != nil {
		return linker.LinkRequest{}, err
	}
	req := linker.LinkRequest{Amount: amount}
	if p.TokenType != nil {
		req.TokenType = linker.TokenType(*p.TokenType)
	}
	return req, nil
}

func (s *Server) respondWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log.WithFields(logrus.Fields{
		"request_id": r.Header.Get(requestIDHeader),
	})

	switch {
	case errors.Is(err, linker.ErrInvalidAmount):
		s.metrics.incIssuance("invalid")
		log.WithError(err).Warn("rejected link request")
		writeError(w, http.StatusBadRequest, "Invalid amount: must be a positive number.")
	case errors.Is(err, linker.ErrInvalidTokenType):
		s.metrics.incIssuance("invalid")
		log.WithError(err).Warn("rejected link request")
		writeError(w, http.StatusBadRequest, "Invalid token type: must be one of 0, 1, 2, 3.")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		s.metrics.incIssuance("insufficient_funds")
		log.WithError(err).Error("issuance aborted")
		writeError(w, http.StatusBadRequest, "Insufficient funds in the wallet to complete the transaction.")
	case errors.Is(err, linker.ErrPreparationFailed):
		s.metrics.incIssuance("failed")
		log.WithError(err).Error("issuance failed")
		writeError(w, http.StatusInternalServerError, "Failed to prepare the deposit transaction.")
	case errors.Is(err, linker.ErrLinkResolutionFailed):
		s.metrics.incIssuance("failed")
		log.WithError(err).Error("issuance failed")
		writeError(w, http.StatusInternalServerError, "Failed to resolve the claim link.")
	case errors.Is(err, linker.ErrSigningFailed):
		s.metrics.incIssuance("failed")
		log.WithError(err).Error("issuance failed")
		writeError(w, http.StatusInternalServerError, "Failed to submit the deposit transaction.")
	default:
		s.metrics.incIssuance("failed")
		log.WithError(err).Error("unexpected issuance error")
		writeError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type rpcStatus struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}

	resp := struct {
		Status string     `json:"status"`
		RPC    *rpcStatus `json:"rpc,omitempty"`
	}{Status: "Server is running."}

	if s.rpcHealthFn != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := &rpcStatus{Connected: true}
		if err := s.rpcHealthFn(ctx); err != nil {
			status.Connected = false
			status.Error = err.Error()
		}
		resp.RPC = status
	}

	writeJSON(w, http.StatusOK, resp)
}

func decimalFromNumber(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Decimal{}, fmt.Errorf("amount is required")
	}
	return decimal.NewFromString(n.String())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
