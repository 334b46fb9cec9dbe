package engine

import (
	"fmt"
	"math"
	"math/big"

	"derivpool/internal/pool"
	"derivpool/internal/sqrtprice"
	"derivpool/internal/tickmath"
)

// swapStep executes a single-range constant-product step: it moves the sqrt
// price by the specified amount and reports the realized amounts on both
// sides from the trader's perspective (negative owed, positive received).
// Amounts the trader pays round up, amounts the trader receives round down.
func swapStep(sqrtP, liquidity *big.Int, params pool.SwapParams) (*big.Int, pool.BalanceDelta, error) {
	amount := new(big.Int).Abs(params.AmountSpecified)
	exactIn := params.ExactInput()

	var (
		next *big.Int
		err  error
	)
	if exactIn {
		next, err = sqrtprice.NextSqrtPriceFromInput(sqrtP, liquidity, amount, params.ZeroForOne)
	} else {
		next, err = sqrtprice.NextSqrtPriceFromOutput(sqrtP, liquidity, amount, params.ZeroForOne)
	}
	if err != nil {
		return nil, pool.BalanceDelta{}, fmt.Errorf("%w: %v", ErrInsufficientLiquidity, err)
	}
	if next.Cmp(tickmath.MinSqrtRatio) < 0 || next.Cmp(tickmath.MaxSqrtRatio) > 0 {
		return nil, pool.BalanceDelta{}, ErrInsufficientLiquidity
	}

	delta := pool.ZeroDelta()
	if params.ZeroForOne {
		// Price moves down: the trader pays currency0, receives currency1.
		amount0 := amount
		if !exactIn {
			amount0, err = sqrtprice.Amount0Delta(next, sqrtP, liquidity, true)
			if err != nil {
				return nil, pool.BalanceDelta{}, err
			}
		}
		amount1 := amount
		if exactIn {
			amount1 = sqrtprice.Amount1Delta(next, sqrtP, liquidity, false)
		}
		delta.Amount0.Neg(amount0)
		delta.Amount1.Set(amount1)
	} else {
		// Price moves up: the trader pays currency1, receives currency0.
		amount1 := amount
		if !exactIn {
			amount1 = sqrtprice.Amount1Delta(sqrtP, next, liquidity, true)
		}
		amount0 := amount
		if exactIn {
			amount0, err = sqrtprice.Amount0Delta(sqrtP, next, liquidity, false)
			if err != nil {
				return nil, pool.BalanceDelta{}, err
			}
		}
		delta.Amount0.Set(amount0)
		delta.Amount1.Neg(amount1)
	}

	return next, delta, nil
}

// tickFromSqrtPrice approximates the tick for a Q64.96 sqrt price. The
// in-memory engine only surfaces this through Slot0 snapshots, so float64
// precision is sufficient.
func tickFromSqrtPrice(sqrtP *big.Int) int32 {
	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(sqrtP),
		new(big.Float).SetInt(sqrtprice.Q96),
	).Float64()
	if ratio <= 0 {
		return tickmath.MinTick
	}
	tick := math.Floor(2 * math.Log(ratio) / math.Log(1.0001))
	if tick < float64(tickmath.MinTick) {
		return tickmath.MinTick
	}
	if tick > float64(tickmath.MaxTick) {
		return tickmath.MaxTick
	}
	return int32(tick)
}
