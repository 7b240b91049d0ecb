package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gemfarm/core"
	"gemfarm/crypto"
	"gemfarm/native/farm"
)

type farmRoutes struct {
	api *api
}

func (fr *farmRoutes) mountWrites(r chi.Router) {
	r.Post("/farms", fr.initFarm)
	r.Post("/farms/{farm}/update", fr.updateFarm)
	r.Post("/farms/{farm}/funders", fr.authorizeFunder)
	r.Delete("/farms/{farm}/funders/{funder}", fr.deauthorizeFunder)
	r.Post("/farms/{farm}/rewards/{mint}/fund", fr.fundReward)
	r.Post("/farms/{farm}/rewards/{mint}/cancel", fr.cancelReward)
	r.Post("/farms/{farm}/rewards/{mint}/lock", fr.lockReward)
	r.Post("/farms/{farm}/farmers", fr.initFarmer)
	r.Post("/farms/{farm}/stake", fr.stake)
	r.Post("/farms/{farm}/unstake", fr.unstake)
	r.Post("/farms/{farm}/claim", fr.claim)
	r.Post("/farms/{farm}/refresh", fr.refresh)
	r.Post("/farms/{farm}/flash-deposit", fr.flashDeposit)
	r.Post("/farms/{farm}/treasury/payout", fr.treasuryPayout)
	r.Post("/farms/{farm}/bank/whitelist", fr.addToBankWhitelist)
	r.Delete("/farms/{farm}/bank/whitelist/{address}", fr.removeFromBankWhitelist)
	r.Post("/farms/{farm}/bank/rarities", fr.addRaritiesToBank)
}

func (fr *farmRoutes) mountReads(r chi.Router) {
	r.Get("/farms/{farm}", fr.getFarm)
	r.Get("/farms/{farm}/farmers/{identity}", fr.getFarmer)
	r.Get("/balances/{mint}/{owner}", fr.getBalance)
}

type rewardSpecRequest struct {
	Mint crypto.Address `json:"mint"`
	Type string         `json:"type"`
}

func (req rewardSpecRequest) spec() (farm.RewardSpec, error) {
	kind, err := farm.ParseRewardType(req.Type)
	if err != nil {
		return farm.RewardSpec{}, err
	}
	return farm.RewardSpec{Mint: req.Mint, Type: kind}, nil
}

type initFarmRequest struct {
	Farm      *crypto.Address   `json:"farm"`
	Bank      *crypto.Address   `json:"bank"`
	Config    farmConfigView    `json:"config"`
	MaxCounts maxCountsView     `json:"maxCounts"`
	RewardA   rewardSpecRequest `json:"rewardA"`
	RewardB   rewardSpecRequest `json:"rewardB"`
}

func (fr *farmRoutes) initFarm(w http.ResponseWriter, r *http.Request) {
	var req initFarmRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	rewardA, err := req.RewardA.spec()
	if err != nil {
		writeBadRequest(w, fmt.Errorf("rewardA: %w", err))
		return
	}
	rewardB, err := req.RewardB.spec()
	if err != nil {
		writeBadRequest(w, fmt.Errorf("rewardB: %w", err))
		return
	}
	fr.api.write(w, r, "farm.init", http.StatusCreated, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		farmAddr := optionalAddress(req.Farm, newRecordAddress("farm", caller))
		bankAddr := optionalAddress(req.Bank, crypto.DeriveAddress("farm-bank", farmAddr))
		f, err := tx.Farm().InitFarm(farmAddr, bankAddr, caller, req.Config.config(), req.MaxCounts.counts(), rewardA, rewardB)
		if err != nil {
			return nil, err
		}
		return newFarmView(f), nil
	})
}

type updateFarmRequest struct {
	Config     *farmConfigView `json:"config,omitempty"`
	MaxCounts  *maxCountsView  `json:"maxCounts,omitempty"`
	NewManager *crypto.Address `json:"newManager,omitempty"`
}

func (req updateFarmRequest) update() farm.FarmUpdate {
	var update farm.FarmUpdate
	if req.Config != nil {
		cfg := req.Config.config()
		update.Config = &cfg
	}
	if req.MaxCounts != nil {
		caps := req.MaxCounts.counts()
		update.MaxCounts = &caps
	}
	update.NewManager = req.NewManager
	return update
}

func (fr *farmRoutes) updateFarm(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req updateFarmRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.update", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		f, err := tx.Farm().UpdateFarm(farmAddr, caller, req.update())
		if err != nil {
			return nil, err
		}
		return newFarmView(f), nil
	})
}

type funderRequest struct {
	Funder crypto.Address `json:"funder"`
}

func (fr *farmRoutes) authorizeFunder(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req funderRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.authorizeFunder", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		proof, err := tx.Farm().AuthorizeFunder(farmAddr, caller, req.Funder)
		if err != nil {
			return nil, err
		}
		return map[string]crypto.Address{"farm": proof.Farm, "funder": proof.Funder}, nil
	})
}

func (fr *farmRoutes) deauthorizeFunder(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	funder, err := pathAddress(r, "funder")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.deauthorizeFunder", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		if err := tx.Farm().DeauthorizeFunder(farmAddr, caller, funder); err != nil {
			return nil, err
		}
		return map[string]bool{"removed": true}, nil
	})
}

type fundRequest struct {
	Amount      string        `json:"amount"`
	DurationSec uint64        `json:"durationSec"`
	Schedule    *scheduleView `json:"schedule,omitempty"`
}

func (fr *farmRoutes) fundReward(w http.ResponseWriter, r *http.Request) {
	farmAddr, mint, err := rewardPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req fundRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fund := farm.FundRequest{Mint: mint, Amount: amount, DurationSec: req.DurationSec, Schedule: req.Schedule.schedule()}
	fr.api.write(w, r, "farm.fundReward", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		f, err := tx.Farm().FundReward(farmAddr, caller, fund)
		if err != nil {
			return nil, err
		}
		return newFarmView(f), nil
	})
}

func (fr *farmRoutes) cancelReward(w http.ResponseWriter, r *http.Request) {
	farmAddr, mint, err := rewardPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.cancelReward", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		refunded, err := tx.Farm().CancelReward(farmAddr, caller, mint)
		if err != nil {
			return nil, err
		}
		return map[string]string{"refunded": formatAmount(refunded)}, nil
	})
}

func (fr *farmRoutes) lockReward(w http.ResponseWriter, r *http.Request) {
	farmAddr, mint, err := rewardPath(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.lockReward", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		f, err := tx.Farm().LockReward(farmAddr, caller, mint)
		if err != nil {
			return nil, err
		}
		return newFarmView(f), nil
	})
}

// farmerOp runs a farmer mutation keyed on the request signer.
func (fr *farmRoutes) farmerOp(op string, status int, fn func(e *farm.Engine, farmAddr, identity crypto.Address) (*farm.Farmer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmAddr, err := pathAddress(r, "farm")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		fr.api.write(w, r, op, status, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
			farmer, err := fn(tx.Farm(), farmAddr, caller)
			if err != nil {
				return nil, err
			}
			return newFarmerView(farmer), nil
		})
	}
}

func (fr *farmRoutes) initFarmer(w http.ResponseWriter, r *http.Request) {
	fr.farmerOp("farm.initFarmer", http.StatusCreated, (*farm.Engine).InitFarmer)(w, r)
}

func (fr *farmRoutes) stake(w http.ResponseWriter, r *http.Request) {
	fr.farmerOp("farm.stake", http.StatusOK, (*farm.Engine).Stake)(w, r)
}

func (fr *farmRoutes) unstake(w http.ResponseWriter, r *http.Request) {
	fr.farmerOp("farm.unstake", http.StatusOK, (*farm.Engine).Unstake)(w, r)
}

type claimResponse struct {
	MintA   crypto.Address `json:"mintA"`
	AmountA string         `json:"amountA"`
	MintB   crypto.Address `json:"mintB"`
	AmountB string         `json:"amountB"`
}

func (fr *farmRoutes) claim(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.claim", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		result, err := tx.Farm().Claim(farmAddr, caller)
		if err != nil {
			return nil, err
		}
		return claimResponse{
			MintA:   result.MintA,
			AmountA: formatAmount(result.AmountA),
			MintB:   result.MintB,
			AmountB: formatAmount(result.AmountB),
		}, nil
	})
}

type refreshRequest struct {
	Identity *crypto.Address `json:"identity,omitempty"`
}

// refresh is permissionless; any signer may refresh any farmer.
func (fr *farmRoutes) refresh(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req refreshRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.refreshFarmer", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		farmer, err := tx.Farm().RefreshFarmer(farmAddr, optionalAddress(req.Identity, caller))
		if err != nil {
			return nil, err
		}
		return newFarmerView(farmer), nil
	})
}

type flashDepositRequest struct {
	Mint   crypto.Address  `json:"mint"`
	Amount uint64          `json:"amount"`
	Source *crypto.Address `json:"source,omitempty"`
}

func (fr *farmRoutes) flashDeposit(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req flashDepositRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.flashDeposit", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		farmer, err := tx.Farm().FlashDeposit(farmAddr, caller, req.Mint, req.Amount, optionalAddress(req.Source, caller))
		if err != nil {
			return nil, err
		}
		return newFarmerView(farmer), nil
	})
}

type payoutRequest struct {
	Destination crypto.Address `json:"destination"`
	Amount      string         `json:"amount"`
}

func (fr *farmRoutes) treasuryPayout(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req payoutRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.payoutFromTreasury", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		f, err := tx.Farm().PayoutFromTreasury(farmAddr, caller, req.Destination, amount)
		if err != nil {
			return nil, err
		}
		return newFarmView(f), nil
	})
}

func (fr *farmRoutes) addToBankWhitelist(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
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
	fr.api.write(w, r, "farm.addToBankWhitelist", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		proof, err := tx.Farm().AddToBankWhitelist(farmAddr, caller, req.Address, kind)
		if err != nil {
			return nil, err
		}
		return newProofView(proof), nil
	})
}

func (fr *farmRoutes) removeFromBankWhitelist(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	address, err := pathAddress(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.removeFromBankWhitelist", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		if err := tx.Farm().RemoveFromBankWhitelist(farmAddr, caller, address); err != nil {
			return nil, err
		}
		return map[string]bool{"removed": true}, nil
	})
}

func (fr *farmRoutes) addRaritiesToBank(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req raritiesRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.write(w, r, "farm.addRaritiesToBank", http.StatusOK, func(tx *core.Tx, caller crypto.Address) (interface{}, error) {
		if err := tx.Farm().AddRaritiesToBank(farmAddr, caller, req.configs()); err != nil {
			return nil, err
		}
		return map[string]int{"recorded": len(req.Rarities)}, nil
	})
}

func (fr *farmRoutes) getFarm(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.read(w, func(tx *core.Tx) (interface{}, error) {
		f, err := tx.Farm().Farm(farmAddr)
		if err != nil {
			return nil, err
		}
		return newFarmView(f), nil
	})
}

func (fr *farmRoutes) getFarmer(w http.ResponseWriter, r *http.Request) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	identity, err := pathAddress(r, "identity")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	fr.api.read(w, func(tx *core.Tx) (interface{}, error) {
		farmer, err := tx.Farm().Farmer(farmAddr, identity)
		if err != nil {
			return nil, err
		}
		return newFarmerView(farmer), nil
	})
}

type balanceResponse struct {
	Mint    crypto.Address `json:"mint"`
	Owner   crypto.Address `json:"owner"`
	Balance string         `json:"balance"`
}

func (fr *farmRoutes) getBalance(w http.ResponseWriter, r *http.Request) {
	mint, err := pathAddress(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := pathAddress(r, "owner")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	balance, err := fr.api.ledger.Balance(mint, owner)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Mint: mint, Owner: owner, Balance: formatAmount(balance)})
}

type mintRequest struct {
	Owner  crypto.Address `json:"owner"`
	Amount string         `json:"amount"`
}

// mintTokens credits test balances on development deployments.
func (fr *farmRoutes) mintTokens(w http.ResponseWriter, r *http.Request) {
	mint, err := pathAddress(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req mintRequest
	if err := decodeRequest(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := fr.api.ledger.Mint(r.Context(), mint, req.Owner, amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	balance, err := fr.api.ledger.Balance(mint, req.Owner)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Mint: mint, Owner: req.Owner, Balance: formatAmount(balance)})
}

func rewardPath(r *http.Request) (crypto.Address, crypto.Address, error) {
	farmAddr, err := pathAddress(r, "farm")
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	mint, err := pathAddress(r, "mint")
	if err != nil {
		return crypto.Address{}, crypto.Address{}, err
	}
	return farmAddr, mint, nil
}

func (v farmConfigView) config() farm.FarmConfig {
	return farm.FarmConfig{
		MinStakingPeriodSec: v.MinStakingPeriodSec,
		CooldownPeriodSec:   v.CooldownPeriodSec,
		UnstakingFeeLamp:    v.UnstakingFeeLamp,
	}
}

func (v maxCountsView) counts() farm.MaxCounts {
	return farm.MaxCounts{
		MaxFarmers:      v.MaxFarmers,
		MaxGems:         v.MaxGems,
		MaxRarityPoints: v.MaxRarityPoints,
	}
}
