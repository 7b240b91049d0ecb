package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	coreerrors "gemfarm/core/errors"
	"gemfarm/crypto"
	"gemfarm/gateway/middleware"
)

const requestLimit = 1 << 20 // 1 MiB

var errMissingSigner = errors.New("request signer unknown")

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, kind string, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, string(coreerrors.KindInvalid), err)
}

// writeLedgerError maps a failed ledger operation onto an HTTP status.
func writeLedgerError(w http.ResponseWriter, err error) {
	kind := coreerrors.Classify(err)
	status := statusForKind(kind)
	if kind == coreerrors.KindInternal {
		err = errors.New(http.StatusText(status))
	}
	writeJSONError(w, status, string(kind), err)
}

func statusForKind(kind coreerrors.Kind) int {
	switch kind {
	case coreerrors.KindUnauthorized, coreerrors.KindAccessDenied:
		return http.StatusForbidden
	case coreerrors.KindNotFound:
		return http.StatusNotFound
	case coreerrors.KindConflict:
		return http.StatusConflict
	case coreerrors.KindInvalid:
		return http.StatusBadRequest
	case coreerrors.KindPrecondition:
		return http.StatusUnprocessableEntity
	case coreerrors.KindLocked:
		return http.StatusLocked
	case coreerrors.KindPaused:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeRequest(r *http.Request, out interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, requestLimit+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > requestLimit {
		return fmt.Errorf("request body exceeds %d bytes", requestLimit)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func pathAddress(r *http.Request, name string) (crypto.Address, error) {
	raw := chi.URLParam(r, name)
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

func signer(r *http.Request) (crypto.Address, error) {
	addr, ok := middleware.SignerFromContext(r.Context())
	if !ok {
		return crypto.Address{}, errMissingSigner
	}
	return addr, nil
}

// parseAmount reads a non-negative decimal integer.
func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// optionalAddress returns fallback when value is nil.
func optionalAddress(value *crypto.Address, fallback crypto.Address) crypto.Address {
	if value == nil || value.IsZero() {
		return fallback
	}
	return *value
}
