package farm

import (
	"math/big"

	"gemfarm/core/events"
	"gemfarm/crypto"
	"gemfarm/native/bank"
)

// PayoutFromTreasury sends collected unstaking fees to destination.
func (e *Engine) PayoutFromTreasury(farmAddr, manager, destination crypto.Address, amount *big.Int) (*Farm, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if destination.IsZero() {
		return nil, ErrInvalidAddress
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return nil, err
	}
	if bigOrZero(f.TreasuryBalance).Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}
	if err := e.state.Transfer(NativeMint, f.Treasury, destination, amount); err != nil {
		return nil, err
	}
	f.TreasuryBalance = new(big.Int).Sub(f.TreasuryBalance, amount)
	if err := e.state.FarmPut(f); err != nil {
		return nil, err
	}
	e.emit(events.TreasuryPayout{Farm: farmAddr, Destination: destination, Amount: new(big.Int).Set(amount)})
	return f.Clone(), nil
}

// AddToBankWhitelist whitelists a creator or mint in the farm's bank.
func (e *Engine) AddToBankWhitelist(farmAddr, manager, address crypto.Address, kind bank.WhitelistType) (*bank.WhitelistProof, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return nil, err
	}
	return e.bank.AddToWhitelist(f.Bank, f.Authority, address, kind)
}

// RemoveFromBankWhitelist drops a whitelist entry from the farm's bank.
func (e *Engine) RemoveFromBankWhitelist(farmAddr, manager, address crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return err
	}
	return e.bank.RemoveFromWhitelist(f.Bank, f.Authority, address)
}

// AddRaritiesToBank records rarity points in the farm's bank. Staked farmers
// keep the points they staked with until they restake or flash deposit.
func (e *Engine) AddRaritiesToBank(farmAddr, manager crypto.Address, configs []bank.RarityConfig) error {
	if err := e.ready(); err != nil {
		return err
	}
	f, err := e.loadManagedFarm(farmAddr, manager)
	if err != nil {
		return err
	}
	return e.bank.RecordRarityPoints(f.Bank, f.Authority, configs)
}
