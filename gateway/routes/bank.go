package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gemfarm/core"
	"gemfarm/crypto"
	"gemfarm/native/bank"
)

type bankRoutes struct {
	api *api
}

func (br *bankRoutes) mountWrites(r chi.Router) {
	r.Post("/banks", br.initBank)
	r.Post("/banks/{bank}/flags", br.setFlags)
	r.Post("/banks/{bank}/manager", br.updateManager)
	r.Post("/banks/{bank}/whitelist", br.addToWhitelist)
	r.Delete("/banks/{bank}/whitelist/{address}", br.removeFromWhitelist)
	r.Post("/banks/{bank}/rarities", br.recordRarities)
	r.Post("/banks/{bank}/vaults", br.initVault)
	r.Post("/banks/{bank}/vaults/{vault}/owner", br.updateVaultOwner)
	r.Post("/banks/{bank}/vaults/{vault}/lock", br.setVaultLock)
	r.Post("/banks/{bank}/vaults/{vault}/deposits", br.depositGem)
	r.Post("/banks/{bank}/vaults/{vault}/withdrawals", br.withdrawGem)
}

func (br *bankRoutes) mountReads(r chi.Router) {
	r.Get("/banks/{bank}", br.getBank)
	r.Get("/banks/{bank}/whitelist/{address}", br.getProof)
	r.Get("/vaults/{vault}", br.getVault)
	r.Get("/vaults/{vault}/receipts", br.getReceipts)
}

type initBankRequest struct {
	Bank *crypto.Address `json:"bank"`
}

func (br *bankRoutes) initBank(w http.ResponseWriter, r *http.Request) {
	var req initBankRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.init", http.StatusCreated, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		addr := optionalAddress(req.Bank, newRecordAddress("bank", caller))
		b, err := tx.Bank().InitBank(addr, caller)
		if err != nil {
			return nil, err
		}
		return newBankView(b), nil
	})
}

type flagsRequest struct {
	Flags uint32 `json:"flags"`
}

func (br *bankRoutes) setFlags(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req flagsRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.setFlags", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		b, err := tx.Bank().SetBankFlags(bankAddr, caller, bank.BankFlags(req.Flags))
		if err != nil {
			return nil, err
		}
		return newBankView(b), nil
	})
}

type managerRequest struct {
	NewManager crypto.Address `json:"newManager"`
}

func (br *bankRoutes) updateManager(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req managerRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.updateManager", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		b, err := tx.Bank().UpdateBankManager(bankAddr, caller, req.NewManager)
		if err != nil {
			return nil, err
		}
		return newBankView(b), nil
	})
}

type whitelistRequest struct {
	Address crypto.Address `json:"address"`
	Type    string         `json:"type"`
}

func (req whitelistRequest) kind() (bank.WhitelistType, error) {
	kind, err := bank.ParseWhitelistType(req.Type)
	if err != nil {
		return 0, fmt.Errorf("type: %w", err)
	}
	return kind, nil
}

func (br *bankRoutes) addToWhitelist(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req whitelistRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	kind, err := req.kind()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.addToWhitelist", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		proof, err := tx.Bank().AddToWhitelist(bankAddr, caller, req.Address, kind)
		if err != nil {
			return nil, err
		}
		return newProofView(proof), nil
	})
}

func (br *bankRoutes) removeFromWhitelist(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	address, err := pathAddress(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.removeFromWhitelist", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		if err := tx.Bank().RemoveFromWhitelist(bankAddr, caller, address); err != nil {
			return nil, err
		}
		return map[string]bool{"removed": true}, nil
	})
}

type rarityEntry struct {
	Mint   crypto.Address `json:"mint"`
	Points uint64         `json:"points"`
}

type raritiesRequest struct {
	Rarities []rarityEntry `json:"rarities"`
}

func (req raritiesRequest) configs() []bank.RarityConfig {
	out := make([]bank.RarityConfig, 0, len(req.Rarities))
	for _, entry := range req.Rarities {
		out = append(out, bank.RarityConfig{Mint: entry.Mint, Points: entry.Points})
	}
	return out
}

func (br *bankRoutes) recordRarities(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req raritiesRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.recordRarityPoints", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		if err := tx.Bank().RecordRarityPoints(bankAddr, caller, req.configs()); err != nil {
			return nil, err
		}
		return map[string]int{"recorded": len(req.Rarities)}, nil
	})
}

type initVaultRequest struct {
	Owner *crypto.Address `json:"owner"`
	Name  string          `json:"name"`
}

func (br *bankRoutes) initVault(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req initVaultRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.initVault", http.StatusCreated, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		v, err := tx.Bank().InitVault(bankAddr, caller, optionalAddress(req.Owner, caller), req.Name)
		if err != nil {
			return nil, err
		}
		return newVaultView(v), nil
	})
}

type ownerRequest struct {
	NewOwner crypto.Address `json:"newOwner"`
}

func (br *bankRoutes) updateVaultOwner(w http.ResponseWriter, r *http.Request) {
	bankAddr, vaultAddr, err := vaultPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req ownerRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.updateVaultOwner", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		v, err := tx.Bank().UpdateVaultOwner(bankAddr, vaultAddr, caller, req.NewOwner)
		if err != nil {
			return nil, err
		}
		return newVaultView(v), nil
	})
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

func (br *bankRoutes) setVaultLock(w http.ResponseWriter, r *http.Request) {
	bankAddr, vaultAddr, err := vaultPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req lockRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.setVaultLock", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		v, err := tx.Bank().SetVaultLock(bankAddr, vaultAddr, caller, req.Locked)
		if err != nil {
			return nil, err
		}
		return newVaultView(v), nil
	})
}

type gemMoveRequest struct {
	Mint   crypto.Address  `json:"mint"`
	Amount uint64          `json:"amount"`
	Source *crypto.Address `json:"source,omitempty"`
	// Receiver is only read by withdrawals.
	Receiver *crypto.Address `json:"receiver,omitempty"`
}

func (br *bankRoutes) depositGem(w http.ResponseWriter, r *http.Request) {
	bankAddr, vaultAddr, err := vaultPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req gemMoveRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.depositGem", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		v, err := tx.Bank().DepositGem(bankAddr, vaultAddr, caller, req.Mint, req.Amount, optionalAddress(req.Source, caller))
		if err != nil {
			return nil, err
		}
		return newVaultView(v), nil
	})
}

func (br *bankRoutes) withdrawGem(w http.ResponseWriter, r *http.Request) {
	bankAddr, vaultAddr, err := vaultPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req gemMoveRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.write(w, r, "bank.withdrawGem", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		v, err := tx.Bank().WithdrawGem(bankAddr, vaultAddr, caller, req.Mint, req.Amount, optionalAddress(req.Receiver, caller))
		if err != nil {
			return nil, err
		}
		return newVaultView(v), nil
	})
}

func (br *bankRoutes) getBank(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.read(w, func(tx *core.Tx) (interface{}, error) {
		b, err := tx.Bank().Bank(bankAddr)
		if err != nil {
			return nil, err
		}
		return newBankView(b), nil
	})
}

func (br *bankRoutes) getProof(w http.ResponseWriter, r *http.Request) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	address, err := pathAddress(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.read(w, func(tx *core.Tx) (interface{}, error) {
		proof, err := tx.Bank().WhitelistProof(bankAddr, address)
		if err != nil {
			return nil, err
		}
		return newProofView(proof), nil
	})
}

func (br *bankRoutes) getVault(w http.ResponseWriter, r *http.Request) {
	vaultAddr, err := pathAddress(r, "vault")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.read(w, func(tx *core.Tx) (interface{}, error) {
		v, err := tx.Bank().Vault(vaultAddr)
		if err != nil {
			return nil, err
		}
		return newVaultView(v), nil
	})
}

func (br *bankRoutes) getReceipts(w http.ResponseWriter, r *http.Request) {
	vaultAddr, err := pathAddress(r, "vault")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	br.api.read(w, func(tx *core.Tx) (interface{}, error) {
		receipts, err := tx.Bank().Receipts(vaultAddr)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"receipts": newReceiptViews(receipts)}, nil
	})
}

func vaultPath(r *http.Request) (crypto.Address, crypto.Address, error) {
	bankAddr, err := pathAddress(r, "bank")
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	vaultAddr, err := pathAddress(r, "vault")
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	return bankAddr, vaultAddr, nil
}
