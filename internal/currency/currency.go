package currency

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Currency identifies an asset by its 20-byte address. The zero address is
// reserved for the network's native asset.
type Currency common.Address

var (
	// Native is the distinguished native asset.
	Native = Currency{}

	ErrIdenticalCurrencies = errors.New("identical currencies")
)

// FromAddress wraps an address as a Currency.
func FromAddress(addr common.Address) Currency {
	return Currency(addr)
}

// Address returns the underlying address.
func (c Currency) Address() common.Address {
	return common.Address(c)
}

// IsNative reports whether the currency is the native asset.
func (c Currency) IsNative() bool {
	return c == Native
}

// String returns the checksummed hex representation.
func (c Currency) String() string {
	return common.Address(c).Hex()
}

// Less reports whether c sorts before other by identifier.
func (c Currency) Less(other Currency) bool {
	return bytes.Compare(c[:], other[:]) < 0
}

// Sort returns the pair (low, high) in canonical identifier order and whether
// a landed in the low slot. Canonical ordering must be computed identically by
// every caller that addresses a pool, so this function is pure: no state, no
// branching on anything but the two inputs.
func Sort(a, b Currency) (low, high Currency, aIsLow bool, err error) {
	if a == b {
		return Currency{}, Currency{}, false, ErrIdenticalCurrencies
	}
	if a.Less(b) {
		return a, b, true, nil
	}
	return b, a, false, nil
}
