package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gemfarm/crypto"
	"gemfarm/native/bank"
)

// metadataRoutes expose the NFT creator registry that creator whitelists
// are checked against.
type metadataRoutes struct {
	api *api
}

func (mr *metadataRoutes) mountReads(r chi.Router) {
	r.Get("/mints/{mint}/creators", mr.creators)
}

func (mr *metadataRoutes) mountWrites(r chi.Router) {
	r.Post("/mints/{mint}/creators", mr.recordCreators)
}

type creatorView struct {
	Address  crypto.Address `json:"address"`
	Verified bool           `json:"verified"`
}

type creatorsRequest struct {
	Creators []creatorView `json:"creators"`
}

type creatorsResponse struct {
	Mint     crypto.Address `json:"mint"`
	Creators []creatorView  `json:"creators"`
}

func newCreatorsResponse(mint crypto.Address, creators []bank.Creator) creatorsResponse {
	out := creatorsResponse{Mint: mint, Creators: make([]creatorView, 0, len(creators))}
	for _, c := range creators {
		out.Creators = append(out.Creators, creatorView{Address: c.Address, Verified: c.Verified})
	}
	return out
}

func (mr *metadataRoutes) recordCreators(w http.ResponseWriter, r *http.Request) {
	mint, err := pathAddress(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req creatorsRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	caller, err := signer(r)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", err)
		return
	}
	creators := make([]bank.Creator, 0, len(req.Creators))
	for _, c := range req.Creators {
		creators = append(creators, bank.Creator{Address: c.Address, Verified: c.Verified})
	}
	if err := mr.api.ledger.RecordCreators(r.Context(), caller, mint, creators); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCreatorsResponse(mint, creators))
}

func (mr *metadataRoutes) creators(w http.ResponseWriter, r *http.Request) {
	mint, err := pathAddress(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	creators, err := mr.api.ledger.Creators(mint)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCreatorsResponse(mint, creators))
}
