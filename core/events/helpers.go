package events

import (
	"math/big"
	"strconv"

	"gemfarm/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func addr(a crypto.Address) string {
	return a.String()
}
