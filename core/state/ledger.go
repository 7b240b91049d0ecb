package state

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"gemfarm/crypto"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrBalanceOverflow     = errors.New("ledger: balance overflow")
	ErrInvalidAmount       = errors.New("ledger: amount must not be negative")
)

func balanceKey(mint, owner crypto.Address) []byte {
	return addressKey(balancePrefix, mint, owner)
}

func supplyKey(mint crypto.Address) []byte {
	return addressKey(supplyPrefix, mint)
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

// Balance returns the amount of mint held by owner.
func (m *Manager) Balance(mint, owner crypto.Address) (*big.Int, error) {
	return m.loadAmount(balanceKey(mint, owner))
}

// Supply returns the total amount of mint issued through Mint.
func (m *Manager) Supply(mint crypto.Address) (*big.Int, error) {
	return m.loadAmount(supplyKey(mint))
}

// checkedAdd adds two balances, rejecting results that do not fit in 256 bits.
func checkedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if _, overflow := uint256.FromBig(sum); overflow {
		return nil, ErrBalanceOverflow
	}
	return sum, nil
}

// Mint issues new units of mint to owner.
func (m *Manager) Mint(mint, owner crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	supply, err := m.Supply(mint)
	if err != nil {
		return err
	}
	nextSupply, err := checkedAdd(supply, amount)
	if err != nil {
		return err
	}
	balance, err := m.Balance(mint, owner)
	if err != nil {
		return err
	}
	nextBalance, err := checkedAdd(balance, amount)
	if err != nil {
		return err
	}
	if err := m.storeAmount(supplyKey(mint), nextSupply); err != nil {
		return err
	}
	return m.storeAmount(balanceKey(mint, owner), nextBalance)
}

// Transfer moves amount of mint between two accounts.
func (m *Manager) Transfer(mint, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := m.Balance(mint, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := m.Balance(mint, to)
	if err != nil {
		return err
	}
	nextTo, err := checkedAdd(toBal, amount)
	if err != nil {
		return err
	}
	if err := m.storeAmount(balanceKey(mint, from), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.storeAmount(balanceKey(mint, to), nextTo)
}
