package state

import "gemfarm/crypto"

var (
	balancePrefix       = []byte("ledger/balance/")
	supplyPrefix        = []byte("ledger/supply/")
	bankPrefix          = []byte("bank/record/")
	vaultPrefix         = []byte("bank/vault/")
	vaultReceiptsPrefix = []byte("bank/vault-receipts/")
	receiptPrefix       = []byte("bank/receipt/")
	whitelistPrefix     = []byte("bank/whitelist/")
	rarityPrefix        = []byte("bank/rarity/")
	creatorsPrefix      = []byte("meta/creators/")
	farmPrefix          = []byte("farm/record/")
	farmIndexKeyBytes   = []byte("farm/index")
	farmerPrefix        = []byte("farm/farmer/")
	farmFarmersPrefix   = []byte("farm/farmers/")
	funderPrefix        = []byte("farm/funder/")
	farmFundersPrefix   = []byte("farm/funders/")
)

func addressKey(prefix []byte, addrs ...crypto.Address) []byte {
	buf := make([]byte, 0, len(prefix)+len(addrs)*(crypto.AddressLength+1))
	buf = append(buf, prefix...)
	for i, addr := range addrs {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, addr[:]...)
	}
	return buf
}
