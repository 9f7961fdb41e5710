// server.go - HTTP surface of the ledger daemon
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/philippgille/gokv"
	"github.com/rs/zerolog"

	"cipherledger/internal/fhe"
	"cipherledger/internal/ledger"
	"cipherledger/internal/store"
)

// Server wires the ledger, coprocessor and persistence behind HTTP handlers.
type Server struct {
	cfg     *Config
	log     zerolog.Logger
	cop     *fhe.Coprocessor
	ledger  *ledger.Ledger
	kv      gokv.Store
	metrics *MetricsCollector
	limiter *CallerRateLimiter
	health  *HealthChecker
}

type mintRequest struct {
	Caller   string `json:"caller"`
	To       string `json:"to"`
	AmountCt string `json:"amount_ct"`
	Proof    string `json:"proof"`
}

type transferRequest struct {
	Caller   string `json:"caller"`
	To       string `json:"to"`
	AmountCt string `json:"amount_ct"`
	Proof    string `json:"proof"`
}

type approveRequest struct {
	Caller   string `json:"caller"`
	Spender  string `json:"spender"`
	AmountCt string `json:"amount_ct"`
	Proof    string `json:"proof"`
}

type transferFromRequest struct {
	Caller   string `json:"caller"`
	From     string `json:"from"`
	To       string `json:"to"`
	AmountCt string `json:"amount_ct"`
	Proof    string `json:"proof"`
}

type energyLogRequest struct {
	Caller        string `json:"caller"`
	Date          string `json:"date"`
	ElectricityCt string `json:"electricity_ct"`
	GasCt         string `json:"gas_ct"`
	WaterCt       string `json:"water_ct"`
	Proof         string `json:"proof"`
}

type decryptRequest struct {
	Caller string `json:"caller"`
	Handle string `json:"handle"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed client input (bad address or hex field) so
// statusFor maps it to 400 rather than 500.
var errBadRequest = errors.New("bad request")

// Routes builds the daemon's HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/mint", s.handleMint)
	mux.HandleFunc("POST /v1/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/transfer-from", s.handleTransferFrom)
	mux.HandleFunc("POST /v1/energy-log", s.handleEnergyLog)
	mux.HandleFunc("POST /v1/decrypt", s.handleDecrypt)
	mux.HandleFunc("GET /v1/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/allowance", s.handleAllowance)
	mux.HandleFunc("GET /v1/log/count", s.handleLogCount)
	mux.HandleFunc("GET /v1/log", s.handleLog)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/pubkey", s.handlePubKey)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	return mux
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	caller, ok := s.decodeMutation(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	s.runMutation(w, "mint", caller, func() error {
		to, ct, proof, err := addrAndPayload(req.To, req.AmountCt, req.Proof)
		if err != nil {
			return err
		}
		return s.ledger.Mint(caller, to, ct, proof)
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	caller, ok := s.decodeMutation(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	s.runMutation(w, "transfer", caller, func() error {
		to, ct, proof, err := addrAndPayload(req.To, req.AmountCt, req.Proof)
		if err != nil {
			return err
		}
		return s.ledger.Transfer(caller, to, ct, proof)
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	caller, ok := s.decodeMutation(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	s.runMutation(w, "approve", caller, func() error {
		spender, ct, proof, err := addrAndPayload(req.Spender, req.AmountCt, req.Proof)
		if err != nil {
			return err
		}
		return s.ledger.Approve(caller, spender, ct, proof)
	})
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferFromRequest
	caller, ok := s.decodeMutation(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	s.runMutation(w, "transfer_from", caller, func() error {
		from, err := parseAddress(req.From)
		if err != nil {
			return err
		}
		to, ct, proof, err := addrAndPayload(req.To, req.AmountCt, req.Proof)
		if err != nil {
			return err
		}
		return s.ledger.TransferFrom(caller, from, to, ct, proof)
	})
}

func (s *Server) handleEnergyLog(w http.ResponseWriter, r *http.Request) {
	var req energyLogRequest
	caller, ok := s.decodeMutation(w, r, &req, &req.Caller)
	if !ok {
		return
	}
	s.runMutation(w, "energy_log", caller, func() error {
		elec, err := decodeHex("electricity_ct", req.ElectricityCt)
		if err != nil {
			return err
		}
		gas, err := decodeHex("gas_ct", req.GasCt)
		if err != nil {
			return err
		}
		water, err := decodeHex("water_ct", req.WaterCt)
		if err != nil {
			return err
		}
		proof, err := decodeHex("proof", req.Proof)
		if err != nil {
			return err
		}
		return s.ledger.AddEnergyLog(caller, req.Date, elec, gas, water, proof)
	})
}

// handleDecrypt is the reencryption surface of the trusted oracle: it returns
// the plaintext only when the caller holds a grant on the handle.
func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start := time.Now()
	v, err := s.cop.Decrypt64(fhe.HandleFromHex(req.Handle), caller)
	s.metrics.RecordCall("decrypt", err, time.Since(start))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"value": v})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h := s.ledger.BalanceOf(account)
	writeJSON(w, http.StatusOK, map[string]string{"handle": h.Hex()})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := parseAddress(r.URL.Query().Get("spender"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h := s.ledger.Allowance(owner, spender)
	writeJSON(w, http.StatusOK, map[string]string{"handle": h.Hex()})
}

func (s *Server) handleLogCount(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": s.ledger.GetLogCount(account)})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var index int
	if _, err := fmt.Sscanf(r.URL.Query().Get("index"), "%d", &index); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid index: %w", err))
		return
	}
	entry, err := s.ledger.GetLog(account, index)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("account"); raw != "" {
		account, err := parseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, s.ledger.EventsByAccount(account))
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Events())
}

func (s *Server) handlePubKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"n":        s.cop.PublicKey().N.Text(16),
		"contract": s.cop.Contract().Hex(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.CheckHealth()
	code := http.StatusOK
	if health.OverallStatus == Unhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Summary())
}

// decodeMutation parses the request body, resolves the caller address and
// applies the per-caller rate limit.
func (s *Server) decodeMutation(w http.ResponseWriter, r *http.Request, req any, callerField *string) (common.Address, bool) {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return common.Address{}, false
	}
	caller, err := parseAddress(*callerField)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return common.Address{}, false
	}
	if !s.limiter.Allow(caller) {
		writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
		return common.Address{}, false
	}
	return caller, true
}

// runMutation executes a state-changing call, records metrics and persists a
// snapshot on success.
func (s *Server) runMutation(w http.ResponseWriter, op string, caller common.Address, fn func() error) {
	start := time.Now()
	err := fn()
	s.metrics.RecordCall(op, err, time.Since(start))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := s.persist(); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("snapshot persist failed")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// persist writes both snapshots to the kv store. Ledger state references
// coprocessor handles, so the coprocessor snapshot goes first.
func (s *Server) persist() error {
	if err := s.kv.Set(store.KeyCoprocessor, s.cop.Snapshot()); err != nil {
		return fmt.Errorf("coprocessor snapshot: %w", err)
	}
	if err := s.kv.Set(store.KeyLedger, s.ledger.Snapshot()); err != nil {
		return fmt.Errorf("ledger snapshot: %w", err)
	}
	return nil
}

func addrAndPayload(addr, ctHex, proofHex string) (common.Address, []byte, []byte, error) {
	a, err := parseAddress(addr)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	ct, err := decodeHex("amount_ct", ctHex)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	proof, err := decodeHex("proof", proofHex)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return a, ct, proof, nil
}

func decodeHex(field, s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", errBadRequest, field, err)
	}
	return b, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", errBadRequest, s)
	}
	return common.HexToAddress(s), nil
}

// statusFor maps ledger and backend errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, fhe.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrIndexOutOfBounds),
		errors.Is(err, fhe.ErrUnknownHandle):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidRecipient),
		errors.Is(err, ledger.ErrNonPositiveAmount),
		errors.Is(err, fhe.ErrAdmission),
		errors.Is(err, fhe.ErrValueRange):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
