package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"

	"pooled-vault/internal/domain"
	"pooled-vault/internal/storage"
	"pooled-vault/internal/vault"
)

// RegisterRoutes mounts the vault API on the given mux. Mutations are
// POST, queries are GET; every error is a structured JSON body and
// never carries instructions.
func (d *Dispatcher) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/instantiate", d.handleInstantiate)
	mux.HandleFunc("/v1/deposit", d.handleDeposit)
	mux.HandleFunc("/v1/withdraw", d.handleWithdraw)
	mux.HandleFunc("/v1/supply", d.handleTotalSupply)
	mux.HandleFunc("/v1/balance", d.handleBalanceOf)
	mux.HandleFunc("/v1/vault", d.handleVaultInfo)
	mux.HandleFunc("/v1/value", d.handleVaultValue)
	mux.HandleFunc("/v1/invariant", d.handleInvariant)
}

func (d *Dispatcher) handleInstantiate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req InstantiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}

	resp, err := d.Instantiate(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (d *Dispatcher) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}

	resp, err := d.Deposit(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}

	resp, err := d.Withdraw(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) handleTotalSupply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := d.TotalSupply(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) handleBalanceOf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	holder := domain.Address(r.URL.Query().Get("holder"))
	resp, err := d.BalanceOf(r.Context(), holder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) handleVaultInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := d.VaultInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) handleVaultValue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := d.VaultValue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) handleInvariant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := d.CheckInvariant(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// httpStatus maps engine sentinels onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, vault.ErrValidation), errors.Is(err, vault.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, vault.ErrInsufficientShares), errors.Is(err, vault.ErrArithmetic):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrNotInitialized), errors.Is(err, vault.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, vault.ErrExternalQuery):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), ErrorResponse{
		Error: err.Error(),
		Code:  errorCode(err),
	})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: "malformed request body: " + err.Error(),
		Code:  "bad_request",
	})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error: "method not allowed",
		Code:  "method_not_allowed",
	})
}
