package core

import (
	"context"

	"gemfarm/core/events"
	"gemfarm/crypto"
	"gemfarm/native/bank"
)

// maxCreators bounds an NFT creator list.
const maxCreators = 5

// RecordCreators replaces the creator list of an NFT mint. Banks read these
// lists when a creator whitelist gates deposits. Only the configured metadata
// authority may write them; an empty list clears the record.
func (l *Ledger) RecordCreators(ctx context.Context, signer, mint crypto.Address, creators []bank.Creator) error {
	return l.Execute(ctx, "token.recordCreators", func(tx *Tx) error {
		if l.metadataAuthority.IsZero() || signer != l.metadataAuthority {
			return bank.ErrUnauthorized
		}
		if mint.IsZero() {
			return bank.ErrInvalidAddress
		}
		if err := validateCreators(creators); err != nil {
			return err
		}
		if err := tx.State().SetCreators(mint, creators); err != nil {
			return err
		}
		evt := events.CreatorsRecorded{Mint: mint, Authority: signer}
		for _, c := range creators {
			evt.Creators = append(evt.Creators, c.Address)
			if c.Verified {
				evt.Verified = append(evt.Verified, c.Address)
			}
		}
		l.buffer.Emit(evt)
		return nil
	})
}

// Creators returns the recorded creator list of mint.
func (l *Ledger) Creators(mint crypto.Address) ([]bank.Creator, error) {
	return Query(l, func(tx *Tx) ([]bank.Creator, error) {
		return tx.State().VerifiedCreators(mint)
	})
}

func validateCreators(creators []bank.Creator) error {
	if len(creators) > maxCreators {
		return bank.ErrInvalidCreators
	}
	seen := make(map[crypto.Address]struct{}, len(creators))
	for _, c := range creators {
		if c.Address.IsZero() {
			return bank.ErrInvalidCreators
		}
		if _, dup := seen[c.Address]; dup {
			return bank.ErrInvalidCreators
		}
		seen[c.Address] = struct{}{}
	}
	return nil
}
