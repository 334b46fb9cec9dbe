package pool

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"derivpool/internal/currency"
)

// Key identifies a pool. Currency0's identifier is strictly less than
// Currency1's; NewKey is the only constructor that guarantees this, so
// callers must not assemble a Key by hand.
type Key struct {
	Currency0   currency.Currency `json:"currency0"`
	Currency1   currency.Currency `json:"currency1"`
	Fee         uint32            `json:"fee"`
	TickSpacing int32             `json:"tick_spacing"`
	Hooks       common.Address    `json:"hooks"`
}

// NewKey canonicalizes the pair and builds the key. The returned boolean
// reports whether a landed in the low slot.
func NewKey(a, b currency.Currency, fee uint32, tickSpacing int32, hooks common.Address) (Key, bool, error) {
	low, high, aIsLow, err := currency.Sort(a, b)
	if err != nil {
		return Key{}, false, err
	}
	return Key{
		Currency0:   low,
		Currency1:   high,
		Fee:         fee,
		TickSpacing: tickSpacing,
		Hooks:       hooks,
	}, aIsLow, nil
}

// ID returns the pool identifier: keccak256 over the packed key fields.
// The packing is fixed-width so the hash is stable across processes.
func (k Key) ID() common.Hash {
	buf := make([]byte, 0, 20+20+4+4+20)
	buf = append(buf, k.Currency0[:]...)
	buf = append(buf, k.Currency1[:]...)
	buf = binary.BigEndian.AppendUint32(buf, k.Fee)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.TickSpacing))
	buf = append(buf, k.Hooks[:]...)
	return crypto.Keccak256Hash(buf)
}

// Involves reports whether c is one of the pool's two currencies.
func (k Key) Involves(c currency.Currency) bool {
	return k.Currency0 == c || k.Currency1 == c
}

// SwapParams carries the trader-fixed half of a swap. AmountSpecified is
// negative for exact-input (the trader fixes how much they sell) and positive
// for exact-output (the trader fixes how much they receive).
type SwapParams struct {
	ZeroForOne      bool
	AmountSpecified *big.Int
}

// ExactInput reports whether the swap fixes the sold amount.
func (p SwapParams) ExactInput() bool {
	return p.AmountSpecified.Sign() < 0
}

// SpecifiedIsCurrency0 resolves which canonical slot the trader-fixed amount
// refers to. The mapping flips between exact-input and exact-output: selling
// currency0 fixes currency0, but buying currency1 while selling currency0
// fixes currency1. Must not be approximated as "specified = input".
func (p SwapParams) SpecifiedIsCurrency0() bool {
	return p.ZeroForOne == p.ExactInput()
}
