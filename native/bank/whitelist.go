package bank

import (
	"gemfarm/core/events"
	"gemfarm/crypto"
)

// AddToWhitelist admits address into the bank as the given kind. Re-adding an
// existing address replaces its kind and rebalances the gate counters.
func (e *Engine) AddToWhitelist(bankAddr, manager, address crypto.Address, kind WhitelistType) (*WhitelistProof, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, ErrInvalidWhitelistType
	}
	if address.IsZero() {
		return nil, ErrInvalidAddress
	}
	b, err := e.loadManagedBank(bankAddr, manager)
	if err != nil {
		return nil, err
	}
	var previous WhitelistType
	existing, ok, err := e.state.WhitelistGet(bankAddr, address)
	if err != nil {
		return nil, err
	}
	if ok {
		previous = existing.Type
	}
	adjustGateCounters(b, previous, kind)
	proof := &WhitelistProof{Bank: bankAddr, Address: address, Type: kind}
	if err := e.state.WhitelistPut(proof); err != nil {
		return nil, err
	}
	if err := e.state.BankPut(b); err != nil {
		return nil, err
	}
	e.emit(events.WhitelistChanged{Bank: bankAddr, Address: address, Kind: kind.String()})
	return proof.Clone(), nil
}

// RemoveFromWhitelist deletes the proof for address.
func (e *Engine) RemoveFromWhitelist(bankAddr, manager, address crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	b, err := e.loadManagedBank(bankAddr, manager)
	if err != nil {
		return err
	}
	existing, ok, err := e.state.WhitelistGet(bankAddr, address)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProofNotFound
	}
	adjustGateCounters(b, existing.Type, 0)
	if err := e.state.WhitelistDelete(bankAddr, address); err != nil {
		return err
	}
	if err := e.state.BankPut(b); err != nil {
		return err
	}
	e.emit(events.WhitelistChanged{Removed: true, Bank: bankAddr, Address: address, Kind: existing.Type.String()})
	return nil
}

// WhitelistProof returns the proof recorded for address, if any.
func (e *Engine) WhitelistProof(bankAddr, address crypto.Address) (*WhitelistProof, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	proof, ok, err := e.state.WhitelistGet(bankAddr, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProofNotFound
	}
	return proof, nil
}

// CheckDeposit reports whether mint would pass the bank's whitelist gates.
func (e *Engine) CheckDeposit(bankAddr, mint crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	b, err := e.loadBank(bankAddr)
	if err != nil {
		return err
	}
	return e.checkWhitelist(b, mint)
}

func adjustGateCounters(b *Bank, previous, next WhitelistType) {
	switch {
	case previous.IsCreator() && !next.IsCreator():
		if b.WhitelistedCreators > 0 {
			b.WhitelistedCreators--
		}
	case !previous.IsCreator() && next.IsCreator():
		b.WhitelistedCreators++
	}
	switch {
	case previous.IsMint() && !next.IsMint():
		if b.WhitelistedMints > 0 {
			b.WhitelistedMints--
		}
	case !previous.IsMint() && next.IsMint():
		b.WhitelistedMints++
	}
}

// checkWhitelist applies the mint and creator gates. Each gate is active only
// while its counter is positive; a deposit passes when no gate is active or
// when it satisfies at least one active gate. A proof of the wrong kind counts
// as no proof at all.
func (e *Engine) checkWhitelist(b *Bank, mint crypto.Address) error {
	mintGate := b.WhitelistedMints > 0
	creatorGate := b.WhitelistedCreators > 0
	if !mintGate && !creatorGate {
		return nil
	}
	if mintGate {
		ok, err := e.mintWhitelisted(b.Address, mint)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	if creatorGate {
		ok, err := e.creatorWhitelisted(b.Address, mint)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrNotWhitelisted
}

func (e *Engine) mintWhitelisted(bankAddr, mint crypto.Address) (bool, error) {
	proof, ok, err := e.state.WhitelistGet(bankAddr, mint)
	if err != nil || !ok {
		return false, err
	}
	return proof.Type.IsMint(), nil
}

func (e *Engine) creatorWhitelisted(bankAddr, mint crypto.Address) (bool, error) {
	if e.oracle == nil {
		return false, nil
	}
	creators, err := e.oracle.VerifiedCreators(mint)
	if err != nil {
		return false, err
	}
	for _, creator := range creators {
		if !creator.Verified {
			continue
		}
		proof, ok, err := e.state.WhitelistGet(bankAddr, creator.Address)
		if err != nil {
			return false, err
		}
		if ok && proof.Type.IsCreator() {
			return true, nil
		}
	}
	return false, nil
}
