package state

import (
	"gemfarm/crypto"
	"gemfarm/native/bank"
)

func bankKey(addr crypto.Address) []byte { return addressKey(bankPrefix, addr) }

func vaultKey(addr crypto.Address) []byte { return addressKey(vaultPrefix, addr) }

func receiptKey(vault, mint crypto.Address) []byte { return addressKey(receiptPrefix, vault, mint) }

func vaultReceiptsKey(vault crypto.Address) []byte { return addressKey(vaultReceiptsPrefix, vault) }

func whitelistKey(bankAddr, addr crypto.Address) []byte {
	return addressKey(whitelistPrefix, bankAddr, addr)
}

func rarityKey(bankAddr, mint crypto.Address) []byte {
	return addressKey(rarityPrefix, bankAddr, mint)
}

// BankGet loads a bank record.
func (m *Manager) BankGet(addr crypto.Address) (*bank.Bank, bool, error) {
	record := new(bank.Bank)
	ok, err := m.KVGet(bankKey(addr), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record, true, nil
}

// BankPut stores a bank record.
func (m *Manager) BankPut(b *bank.Bank) error {
	return m.KVPut(bankKey(b.Address), b)
}

// VaultGet loads a vault record.
func (m *Manager) VaultGet(addr crypto.Address) (*bank.Vault, bool, error) {
	record := new(bank.Vault)
	ok, err := m.KVGet(vaultKey(addr), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record, true, nil
}

// VaultPut stores a vault record.
func (m *Manager) VaultPut(v *bank.Vault) error {
	return m.KVPut(vaultKey(v.Address), v)
}

// ReceiptGet loads the deposit receipt of mint in vault.
func (m *Manager) ReceiptGet(vault, mint crypto.Address) (*bank.GemDepositReceipt, bool, error) {
	record := new(bank.GemDepositReceipt)
	ok, err := m.KVGet(receiptKey(vault, mint), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record, true, nil
}

// ReceiptPut stores a receipt and indexes it under its vault.
func (m *Manager) ReceiptPut(r *bank.GemDepositReceipt) error {
	if err := m.KVPut(receiptKey(r.Vault, r.GemMint), r); err != nil {
		return err
	}
	return m.KVAppend(vaultReceiptsKey(r.Vault), r.GemMint.Bytes())
}

// ReceiptDelete removes a receipt and its index entry.
func (m *Manager) ReceiptDelete(vault, mint crypto.Address) error {
	if err := m.KVDelete(receiptKey(vault, mint)); err != nil {
		return err
	}
	return m.KVRemove(vaultReceiptsKey(vault), mint.Bytes())
}

// ReceiptList returns every receipt held by vault in deposit order.
func (m *Manager) ReceiptList(vault crypto.Address) ([]*bank.GemDepositReceipt, error) {
	var mints [][]byte
	if err := m.KVGetList(vaultReceiptsKey(vault), &mints); err != nil {
		return nil, err
	}
	out := make([]*bank.GemDepositReceipt, 0, len(mints))
	for _, raw := range mints {
		receipt, ok, err := m.ReceiptGet(vault, crypto.BytesToAddress(raw))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, receipt)
		}
	}
	return out, nil
}

// WhitelistGet loads the whitelist proof of addr in bankAddr.
func (m *Manager) WhitelistGet(bankAddr, addr crypto.Address) (*bank.WhitelistProof, bool, error) {
	record := new(bank.WhitelistProof)
	ok, err := m.KVGet(whitelistKey(bankAddr, addr), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record, true, nil
}

// WhitelistPut stores a whitelist proof.
func (m *Manager) WhitelistPut(p *bank.WhitelistProof) error {
	return m.KVPut(whitelistKey(p.Bank, p.Address), p)
}

// WhitelistDelete removes a whitelist proof.
func (m *Manager) WhitelistDelete(bankAddr, addr crypto.Address) error {
	return m.KVDelete(whitelistKey(bankAddr, addr))
}

// RarityGet loads the rarity record of mint in bankAddr.
func (m *Manager) RarityGet(bankAddr, mint crypto.Address) (*bank.Rarity, bool, error) {
	record := new(bank.Rarity)
	ok, err := m.KVGet(rarityKey(bankAddr, mint), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record, true, nil
}

// RarityPut stores a rarity record.
func (m *Manager) RarityPut(r *bank.Rarity) error {
	return m.KVPut(rarityKey(r.Bank, r.Mint), r)
}

// storedCreator mirrors bank.Creator for the metadata registry.
type storedCreator struct {
	Address  crypto.Address
	Verified bool
}

func creatorsKey(mint crypto.Address) []byte { return addressKey(creatorsPrefix, mint) }

// SetCreators records the ordered creator list of an NFT mint.
func (m *Manager) SetCreators(mint crypto.Address, creators []bank.Creator) error {
	stored := make([]storedCreator, 0, len(creators))
	for _, c := range creators {
		stored = append(stored, storedCreator{Address: c.Address, Verified: c.Verified})
	}
	if len(stored) == 0 {
		return m.KVDelete(creatorsKey(mint))
	}
	return m.KVPut(creatorsKey(mint), stored)
}

// VerifiedCreators returns the creator list recorded for mint. It lets the
// manager act as the bank's metadata oracle.
func (m *Manager) VerifiedCreators(mint crypto.Address) ([]bank.Creator, error) {
	var stored []storedCreator
	if err := m.KVGetList(creatorsKey(mint), &stored); err != nil {
		return nil, err
	}
	out := make([]bank.Creator, 0, len(stored))
	for _, c := range stored {
		out = append(out, bank.Creator{Address: c.Address, Verified: c.Verified})
	}
	return out, nil
}
