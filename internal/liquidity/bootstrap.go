// Package liquidity seeds a pool's initial position: it validates the tick
// range, derives the liquidity magnitude from a single-asset amount, and
// posts the position through the engine's atomic unlock sequence.
package liquidity

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"derivpool/internal/currency"
	"derivpool/internal/engine"
	"derivpool/internal/pool"
	"derivpool/internal/sqrtprice"
	"derivpool/internal/tickmath"
)

var (
	ErrInvalidTickRange = errors.New("tick lower must be below tick upper")
	ErrInvalidPrice     = errors.New("price must be greater than zero")
	ErrZeroLiquidity    = errors.New("seed amount yields zero liquidity")
	ErrAmountWrongSide  = errors.New("seed amount is on the wrong side of the range")
)

// SeedParams describes one bootstrap request. The range and price are taken
// as submitted: the caller is responsible for expressing them in the pool's
// canonical orientation, no flipping happens on their behalf.
type SeedParams struct {
	Key          pool.Key
	TickLower    int32
	TickUpper    int32
	SqrtPriceX96 *big.Int
	Amount       *big.Int
	// AmountIsCurrency0 tells which canonical slot the seed amount funds.
	AmountIsCurrency0 bool
}

// SeedResult reports the posted position: the liquidity magnitude and the
// amounts actually drawn from the opener on each slot.
type SeedResult struct {
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// Bootstrapper posts initial liquidity through an AMM engine.
type Bootstrapper struct {
	engine engine.Engine
	logger *zap.Logger
}

func NewBootstrapper(eng engine.Engine, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{engine: eng, logger: logger}
}

// Seed validates the request, computes the liquidity the amount can fund at
// the pool's current price, and executes the unlock, modify, settle sequence
// as one atomic unit. The opener funds every owed amount; any positive delta
// is withdrawn back to the opener before the unlock closes.
func (b *Bootstrapper) Seed(opener common.Address, p SeedParams) (SeedResult, error) {
	if p.TickLower >= p.TickUpper {
		return SeedResult{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidTickRange, p.TickLower, p.TickUpper)
	}
	if p.SqrtPriceX96 == nil || p.SqrtPriceX96.Sign() <= 0 {
		return SeedResult{}, ErrInvalidPrice
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return SeedResult{}, ErrZeroLiquidity
	}

	slot, err := b.engine.Slot0(p.Key.ID())
	if err != nil {
		return SeedResult{}, fmt.Errorf("read pool price: %w", err)
	}

	liquidity, err := liquidityForAmount(slot.SqrtPriceX96, p)
	if err != nil {
		return SeedResult{}, err
	}
	if liquidity.Sign() == 0 {
		return SeedResult{}, ErrZeroLiquidity
	}

	result := SeedResult{
		Liquidity: liquidity,
		Amount0:   new(big.Int),
		Amount1:   new(big.Int),
	}

	_, err = b.engine.Unlock(opener, func(s engine.Session) ([]byte, error) {
		delta, err := s.ModifyLiquidity(p.Key, p.TickLower, p.TickUpper, liquidity)
		if err != nil {
			return nil, err
		}

		if err := resolveSide(s, p.Key.Currency0, opener, delta.Amount0, result.Amount0); err != nil {
			return nil, err
		}
		if err := resolveSide(s, p.Key.Currency1, opener, delta.Amount1, result.Amount1); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	b.logger.Info("liquidity seeded",
		zap.String("pool_id", p.Key.ID().Hex()),
		zap.Int32("tick_lower", p.TickLower),
		zap.Int32("tick_upper", p.TickUpper),
		zap.String("liquidity", liquidity.String()),
		zap.String("amount0", result.Amount0.String()),
		zap.String("amount1", result.Amount1.String()),
	)
	return result, nil
}

// liquidityForAmount maps the pool price onto the range and derives liquidity
// from the slot the amount funds. Below the range only currency0 is usable,
// above it only currency1; in range the supplied side bounds the position.
func liquidityForAmount(current *big.Int, p SeedParams) (*big.Int, error) {
	sqrtLower, err := tickmath.SqrtRatioAtTick(p.TickLower)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTickRange, err)
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(p.TickUpper)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTickRange, err)
	}

	switch {
	case current.Cmp(sqrtLower) <= 0:
		if !p.AmountIsCurrency0 {
			return nil, fmt.Errorf("%w: price below range takes currency0 only", ErrAmountWrongSide)
		}
		return sqrtprice.LiquidityForAmount0(sqrtLower, sqrtUpper, p.Amount)
	case current.Cmp(sqrtUpper) >= 0:
		if p.AmountIsCurrency0 {
			return nil, fmt.Errorf("%w: price above range takes currency1 only", ErrAmountWrongSide)
		}
		return sqrtprice.LiquidityForAmount1(sqrtLower, sqrtUpper, p.Amount)
	default:
		if p.AmountIsCurrency0 {
			return sqrtprice.LiquidityForAmount0(current, sqrtUpper, p.Amount)
		}
		return sqrtprice.LiquidityForAmount1(sqrtLower, current, p.Amount)
	}
}

// resolveSide settles an owed delta or takes a credited one, and records the
// signed amount drawn from the opener into drawn (positive = paid in).
func resolveSide(s engine.Session, c currency.Currency, opener common.Address, delta, drawn *big.Int) error {
	switch {
	case delta.Sign() < 0:
		owed := new(big.Int).Neg(delta)
		if err := s.Settle(c, owed); err != nil {
			return err
		}
		drawn.Set(owed)
	case delta.Sign() > 0:
		if err := s.Take(c, opener, delta); err != nil {
			return err
		}
		drawn.Neg(delta)
	}
	return nil
}
