package pool

import "math/big"

// BalanceDelta is a signed settlement delta per canonical slot. Negative
// means the caller owes the pool, positive means the pool owes the caller.
// A delta must be fully resolved before the enclosing atomic operation
// completes.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// ZeroDelta returns a delta with both sides zero.
func ZeroDelta() BalanceDelta {
	return BalanceDelta{Amount0: new(big.Int), Amount1: new(big.Int)}
}

// NewDelta copies the given amounts into a delta. Nil inputs become zero.
func NewDelta(amount0, amount1 *big.Int) BalanceDelta {
	d := ZeroDelta()
	if amount0 != nil {
		d.Amount0.Set(amount0)
	}
	if amount1 != nil {
		d.Amount1.Set(amount1)
	}
	return d
}

// Add accumulates other into d and returns d.
func (d BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	d.Amount0.Add(d.Amount0, other.Amount0)
	d.Amount1.Add(d.Amount1, other.Amount1)
	return d
}

// IsZero reports whether both sides are fully resolved.
func (d BalanceDelta) IsZero() bool {
	return d.Amount0.Sign() == 0 && d.Amount1.Sign() == 0
}

// Amount returns the side selected by slot0.
func (d BalanceDelta) Amount(slot0 bool) *big.Int {
	if slot0 {
		return d.Amount0
	}
	return d.Amount1
}
