package engine

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"derivpool/internal/currency"
	"derivpool/internal/pool"
)

var (
	ErrPoolNotInitialized    = errors.New("pool not initialized")
	ErrPoolAlreadyExists     = errors.New("pool already initialized")
	ErrInvalidStartPrice     = errors.New("start price out of bounds")
	ErrCallbackNotAuthorized = errors.New("callback not authorized")
	ErrAlreadyUnlocked       = errors.New("engine already unlocked")
	ErrDeltaNotSettled       = errors.New("settlement delta not resolved")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for swap")
	ErrBothSidesAdjusted     = errors.New("hook adjusted both swap sides")
	ErrZeroSwapAmount        = errors.New("swap amount must be non-zero")
)

// Slot0 is the pool's current price snapshot.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int32
}

// SwapResult pairs the trader's settlement delta with the fee the hook
// charged on top of the curve amounts.
type SwapResult struct {
	Delta   pool.BalanceDelta
	FeePaid *big.Int
}

// Session is the capability handed to an unlock callback. Every mutation and
// every settlement runs through the session; outstanding deltas must be zero
// when the callback returns or the whole unlock aborts.
type Session interface {
	// ModifyLiquidity applies a liquidity change over a tick range and
	// returns the resulting settlement delta.
	ModifyLiquidity(key pool.Key, tickLower, tickUpper int32, liquidityDelta *big.Int) (pool.BalanceDelta, error)

	// Swap executes a swap, invoking the pool's hooks at the pre-trade and
	// post-trade insertion points.
	Swap(key pool.Key, params pool.SwapParams) (SwapResult, error)

	// Donate credits amounts directly to the pool's liquidity providers.
	Donate(key pool.Key, amount0, amount1 *big.Int) error

	// Settle pays an owed (negative) delta for the currency.
	Settle(c currency.Currency, amount *big.Int) error

	// Take withdraws a positive delta for the currency to the recipient.
	Take(c currency.Currency, recipient common.Address, amount *big.Int) error
}

// Engine is the constant-product AMM substrate the fee-split layer sits on.
type Engine interface {
	// Initialize creates a pool at the given starting price.
	Initialize(key pool.Key, sqrtPriceX96 *big.Int) error

	// Slot0 returns the pool's current price snapshot.
	Slot0(id common.Hash) (Slot0, error)

	// Unlock opens an atomic unit of work and re-enters the caller through
	// fn. Only the session passed to fn may settle the deltas it creates;
	// any failure discards every state change made inside the callback.
	Unlock(opener common.Address, fn func(Session) ([]byte, error)) ([]byte, error)
}

// Hooks is invoked by the engine at exactly two points per swap. The
// pre-trade callback may adjust only the specified side and must return a
// function-identifying acknowledgement; the post-trade callback may adjust
// only the unspecified side.
type Hooks interface {
	BeforeSwap(key pool.Key, params pool.SwapParams) (ack [4]byte, specifiedAdjustment *big.Int, err error)
	AfterSwap(key pool.Key, params pool.SwapParams, delta pool.BalanceDelta) (unspecifiedAdjustment *big.Int, err error)
}
