package crypto

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable prefix used when rendering addresses.
type AddressPrefix string

const (
	GemPrefix AddressPrefix = "gem"
)

// AddressLength is the number of raw bytes backing an Address.
const AddressLength = 20

// Address is a 20-byte account or record identifier. Addresses are
// comparable so they can be used directly as map keys.
type Address [AddressLength]byte

// ZeroAddress is the empty address.
var ZeroAddress Address

// BytesToAddress copies the trailing 20 bytes of b into an Address.
func BytesToAddress(b []byte) Address {
	var addr Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(addr[AddressLength-len(b):], b)
	return addr
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// Less orders addresses lexicographically.
func (a Address) Less(other Address) bool { return bytes.Compare(a[:], other[:]) < 0 }

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(GemPrefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalText renders the bech32 form so addresses serialise cleanly in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a bech32 encoded address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != string(GemPrefix) {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long", AddressLength)
	}
	return BytesToAddress(conv), nil
}

// DeriveAddress deterministically derives a record address from a domain tag
// and a list of seed addresses. It stands in for program-derived addresses:
// the same seeds always resolve to the same record.
func DeriveAddress(tag string, seeds ...Address) Address {
	parts := make([][]byte, 0, len(seeds)+1)
	parts = append(parts, []byte(tag))
	for _, seed := range seeds {
		parts = append(parts, seed[:])
	}
	return BytesToAddress(crypto.Keccak256(parts...))
}

// NameAddress derives an address from a free-form label. It is used for mint
// identifiers and fixtures that are addressed by name.
func NameAddress(label string) Address {
	return BytesToAddress(crypto.Keccak256([]byte("name"), []byte(label)))
}
