package routes

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"gemfarm/core"
	"gemfarm/crypto"
)

// api binds handlers to the ledger they mutate.
type api struct {
	ledger *core.Ledger
	logger *slog.Logger
}

// write runs fn as one atomic ledger operation on behalf of the request signer.
func (a *api) write(w http.ResponseWriter, r *http.Request, op string, status int, fn func(tx *core.Tx, caller crypto.Address) (interface{}, error)) {
	caller, err := signer(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", err)
		return
	}
	result, err := core.Do(r.Context(), a.ledger, op, func(tx *core.Tx) (interface{}, error) {
		return fn(tx, caller)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, status, result)
}

func (a *api) read(w http.ResponseWriter, fn func(tx *core.Tx) (interface{}, error)) {
	result, err := core.Query(a.ledger, fn)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// newRecordAddress names a fresh account when the client does not pick one.
func newRecordAddress(kind string, caller crypto.Address) crypto.Address {
	return crypto.NameAddress(kind + ":" + caller.String() + ":" + uuid.NewString())
}
