// Package sqrtprice implements the Q64.96 fixed-point amount and liquidity
// formulas shared by the engine and the liquidity bootstrapper.
package sqrtprice

import (
	"errors"
	"math/big"
)

var (
	// Q96 is the UQ64.96 fixed-point representation of 1.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	ErrZeroLiquidity = errors.New("liquidity must be greater than zero")
	ErrZeroSqrtPrice = errors.New("sqrt price must be greater than zero")
	ErrInvertedRange = errors.New("sqrt price range is inverted")

	one = big.NewInt(1)
)

// MulDiv returns (a * b) / denom, optionally rounding up.
func MulDiv(a, b, denom *big.Int, roundUp bool) *big.Int {
	product := new(big.Int).Mul(a, b)
	quotient, rem := new(big.Int).QuoRem(product, denom, new(big.Int))
	if roundUp && rem.Sign() != 0 {
		quotient.Add(quotient, one)
	}
	return quotient
}

// DivRoundingUp returns ceil(a / b).
func DivRoundingUp(a, b *big.Int) *big.Int {
	quotient, rem := new(big.Int).QuoRem(a, b, new(big.Int))
	if rem.Sign() != 0 {
		quotient.Add(quotient, one)
	}
	return quotient
}

// Amount0Delta returns the currency0 amount between two sqrt prices for the
// given liquidity: L * 2^96 * (sqrtB - sqrtA) / (sqrtB * sqrtA).
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	if sqrtA.Sign() <= 0 || sqrtB.Sign() <= 0 {
		return nil, ErrZeroSqrtPrice
	}
	lo, hi := sqrtA, sqrtB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}

	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(hi, lo)

	if roundUp {
		interim := MulDiv(numerator1, numerator2, hi, true)
		return DivRoundingUp(interim, lo), nil
	}
	interim := MulDiv(numerator1, numerator2, hi, false)
	return interim.Div(interim, lo), nil
}

// Amount1Delta returns the currency1 amount between two sqrt prices for the
// given liquidity: L * (sqrtB - sqrtA) / 2^96.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	lo, hi := sqrtA, sqrtB
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	return MulDiv(liquidity, new(big.Int).Sub(hi, lo), Q96, roundUp)
}

// LiquidityForAmount0 returns the largest liquidity fundable by amount0 over
// [sqrtA, sqrtB]: amount0 * (sqrtA * sqrtB / 2^96) / (sqrtB - sqrtA).
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) (*big.Int, error) {
	lo, hi := order(sqrtA, sqrtB)
	if lo.Sign() <= 0 {
		return nil, ErrZeroSqrtPrice
	}
	if lo.Cmp(hi) == 0 {
		return nil, ErrInvertedRange
	}
	intermediate := MulDiv(lo, hi, Q96, false)
	return MulDiv(amount0, intermediate, new(big.Int).Sub(hi, lo), false), nil
}

// LiquidityForAmount1 returns the largest liquidity fundable by amount1 over
// [sqrtA, sqrtB]: amount1 * 2^96 / (sqrtB - sqrtA).
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) (*big.Int, error) {
	lo, hi := order(sqrtA, sqrtB)
	if lo.Cmp(hi) == 0 {
		return nil, ErrInvertedRange
	}
	return MulDiv(amount1, Q96, new(big.Int).Sub(hi, lo), false), nil
}

// NextSqrtPriceFromInput returns the sqrt price after swapping amountIn of
// the sold currency against the given liquidity, rounded against the trader.
func NextSqrtPriceFromInput(sqrtP, liquidity, amountIn *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtP.Sign() <= 0 {
		return nil, ErrZeroSqrtPrice
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}

	if zeroForOne {
		// sqrtP' = L * sqrtP * 2^96 / (L * 2^96 + dx * sqrtP), rounded up.
		numerator1 := new(big.Int).Lsh(liquidity, 96)
		product := new(big.Int).Mul(amountIn, sqrtP)
		denominator := new(big.Int).Add(numerator1, product)
		return MulDiv(numerator1, sqrtP, denominator, true), nil
	}

	// sqrtP' = sqrtP + dy * 2^96 / L, rounded down.
	quotient := MulDiv(amountIn, Q96, liquidity, false)
	return new(big.Int).Add(sqrtP, quotient), nil
}

// NextSqrtPriceFromOutput returns the sqrt price after withdrawing amountOut
// of the bought currency, rounded against the trader. Fails when liquidity
// cannot deliver the requested output.
func NextSqrtPriceFromOutput(sqrtP, liquidity, amountOut *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtP.Sign() <= 0 {
		return nil, ErrZeroSqrtPrice
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}

	if zeroForOne {
		// Buying currency1: sqrtP' = sqrtP - dy * 2^96 / L, quotient rounded up.
		quotient := MulDiv(amountOut, Q96, liquidity, true)
		next := new(big.Int).Sub(sqrtP, quotient)
		if next.Sign() <= 0 {
			return nil, ErrZeroLiquidity
		}
		return next, nil
	}

	// Buying currency0: sqrtP' = L * sqrtP * 2^96 / (L * 2^96 - dx * sqrtP).
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	product := new(big.Int).Mul(amountOut, sqrtP)
	denominator := new(big.Int).Sub(numerator1, product)
	if denominator.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}
	return MulDiv(numerator1, sqrtP, denominator, true), nil
}

func order(a, b *big.Int) (lo, hi *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}
