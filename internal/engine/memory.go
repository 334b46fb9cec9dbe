package engine

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"derivpool/internal/currency"
	"derivpool/internal/pool"
	"derivpool/internal/sqrtprice"
	"derivpool/internal/tickmath"
)

var (
	ErrNotUnlocked    = errors.New("no open unlock session")
	ErrInvalidHookAck = errors.New("hook returned an invalid acknowledgement")
	ErrSettleExceeds  = errors.New("settle exceeds owed amount")
	ErrTakeExceeds    = errors.New("take exceeds credited amount")
)

type poolState struct {
	key       pool.Key
	sqrtPrice *big.Int
	tick      int32
	liquidity *big.Int
	donated0  *big.Int
	donated1  *big.Int
}

func (p *poolState) clone() *poolState {
	return &poolState{
		key:       p.key,
		sqrtPrice: new(big.Int).Set(p.sqrtPrice),
		tick:      p.tick,
		liquidity: new(big.Int).Set(p.liquidity),
		donated0:  new(big.Int).Set(p.donated0),
		donated1:  new(big.Int).Set(p.donated1),
	}
}

// Memory is an in-process AMM substrate. Execution is transactional: every
// mutation runs inside an Unlock session against working copies of pool
// state, and a failed or unsettled session commits nothing.
type Memory struct {
	mu      sync.Mutex
	pools   map[common.Hash]*poolState
	hooks   map[common.Address]Hooks
	payouts map[currency.Currency]map[common.Address]*big.Int
	active  *memSession
	logger  *zap.Logger
}

func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		pools:   make(map[common.Hash]*poolState),
		hooks:   make(map[common.Address]Hooks),
		payouts: make(map[currency.Currency]map[common.Address]*big.Int),
		logger:  logger,
	}
}

// RegisterHooks binds a hook implementation to the address pools reference
// through Key.Hooks.
func (m *Memory) RegisterHooks(addr common.Address, h Hooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[addr] = h
}

// Initialize creates a pool at the given starting price.
func (m *Memory) Initialize(key pool.Key, sqrtPriceX96 *big.Int) error {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(tickmath.MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(tickmath.MaxSqrtRatio) > 0 {
		return ErrInvalidStartPrice
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := key.ID()
	if _, ok := m.pools[id]; ok {
		return ErrPoolAlreadyExists
	}

	m.pools[id] = &poolState{
		key:       key,
		sqrtPrice: new(big.Int).Set(sqrtPriceX96),
		tick:      tickFromSqrtPrice(sqrtPriceX96),
		liquidity: new(big.Int),
		donated0:  new(big.Int),
		donated1:  new(big.Int),
	}

	m.logger.Info("pool initialized",
		zap.String("pool_id", id.Hex()),
		zap.String("sqrt_price_x96", sqrtPriceX96.String()),
	)
	return nil
}

// Slot0 returns the pool's committed price snapshot.
func (m *Memory) Slot0(id common.Hash) (Slot0, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps, ok := m.pools[id]
	if !ok {
		return Slot0{}, ErrPoolNotInitialized
	}
	return Slot0{SqrtPriceX96: new(big.Int).Set(ps.sqrtPrice), Tick: ps.tick}, nil
}

// Liquidity returns the pool's committed in-range liquidity.
func (m *Memory) Liquidity(id common.Hash) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps, ok := m.pools[id]
	if !ok {
		return nil, ErrPoolNotInitialized
	}
	return new(big.Int).Set(ps.liquidity), nil
}

// DonatedTotals returns the cumulative donations credited to the pool's
// liquidity providers.
func (m *Memory) DonatedTotals(id common.Hash) (amount0, amount1 *big.Int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ps, ok := m.pools[id]
	if !ok {
		return nil, nil, ErrPoolNotInitialized
	}
	return new(big.Int).Set(ps.donated0), new(big.Int).Set(ps.donated1), nil
}

// TakenBalance returns the total a recipient has withdrawn in a currency.
func (m *Memory) TakenBalance(c currency.Currency, recipient common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	byRecipient, ok := m.payouts[c]
	if !ok {
		return new(big.Int)
	}
	amount, ok := byRecipient[recipient]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(amount)
}

// Donate routes a hook donation into the open session. Hooks hold the engine
// itself as their donation capability and may only use it mid-swap.
func (m *Memory) Donate(key pool.Key, amount0, amount1 *big.Int) error {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil {
		return ErrNotUnlocked
	}
	return s.Donate(key, amount0, amount1)
}

// Unlock opens an atomic unit of work. Only the session handed to fn can
// mutate state; when fn returns, every settlement delta must be resolved or
// the whole unit is discarded.
func (m *Memory) Unlock(opener common.Address, fn func(Session) ([]byte, error)) ([]byte, error) {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyUnlocked
	}
	s := &memSession{
		engine:      m,
		opener:      opener,
		pools:       make(map[common.Hash]*poolState),
		outstanding: make(map[currency.Currency]*big.Int),
	}
	m.active = s
	m.mu.Unlock()

	out, err := fn(s)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil

	if err != nil {
		m.logger.Debug("unlock aborted", zap.Error(err))
		return nil, err
	}

	for c, delta := range s.outstanding {
		if delta.Sign() != 0 {
			return nil, fmt.Errorf("%w: %s outstanding %s", ErrDeltaNotSettled, c.String(), delta)
		}
	}

	for id, ps := range s.pools {
		m.pools[id] = ps
	}
	for _, p := range s.payouts {
		byRecipient, ok := m.payouts[p.c]
		if !ok {
			byRecipient = make(map[common.Address]*big.Int)
			m.payouts[p.c] = byRecipient
		}
		total, ok := byRecipient[p.recipient]
		if !ok {
			total = new(big.Int)
			byRecipient[p.recipient] = total
		}
		total.Add(total, p.amount)
	}

	return out, nil
}

type payout struct {
	c         currency.Currency
	recipient common.Address
	amount    *big.Int
}

// memSession is the working state of one unlock. All pool mutations go to
// lazily-cloned copies committed only on success.
type memSession struct {
	engine      *Memory
	opener      common.Address
	pools       map[common.Hash]*poolState
	outstanding map[currency.Currency]*big.Int
	payouts     []payout
	inSwap      bool
}

// authorize rejects any session that is not the engine's open one, so a
// stale or foreign session cannot complete someone else's pending deltas.
func (s *memSession) authorize() error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	if s.engine.active != s {
		return ErrCallbackNotAuthorized
	}
	return nil
}

func (s *memSession) state(id common.Hash) (*poolState, error) {
	if ps, ok := s.pools[id]; ok {
		return ps, nil
	}

	s.engine.mu.Lock()
	committed, ok := s.engine.pools[id]
	s.engine.mu.Unlock()
	if !ok {
		return nil, ErrPoolNotInitialized
	}

	ps := committed.clone()
	s.pools[id] = ps
	return ps, nil
}

func (s *memSession) account(c currency.Currency) *big.Int {
	delta, ok := s.outstanding[c]
	if !ok {
		delta = new(big.Int)
		s.outstanding[c] = delta
	}
	return delta
}

// ModifyLiquidity applies a liquidity change over a tick range and returns
// the settlement delta: negative amounts are owed to the pool on add,
// positive amounts are owed back to the caller on remove.
func (s *memSession) ModifyLiquidity(key pool.Key, tickLower, tickUpper int32, liquidityDelta *big.Int) (pool.BalanceDelta, error) {
	if err := s.authorize(); err != nil {
		return pool.BalanceDelta{}, err
	}
	if liquidityDelta == nil || liquidityDelta.Sign() == 0 {
		return pool.BalanceDelta{}, ErrZeroSwapAmount
	}

	ps, err := s.state(key.ID())
	if err != nil {
		return pool.BalanceDelta{}, err
	}

	sqrtLower, err := tickmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		return pool.BalanceDelta{}, err
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return pool.BalanceDelta{}, err
	}
	if sqrtLower.Cmp(sqrtUpper) >= 0 {
		return pool.BalanceDelta{}, tickmath.ErrTickOutOfBounds
	}

	adding := liquidityDelta.Sign() > 0
	magnitude := new(big.Int).Abs(liquidityDelta)

	var amount0, amount1 *big.Int
	current := ps.sqrtPrice
	switch {
	case current.Cmp(sqrtLower) <= 0:
		// Entirely in currency0.
		amount0, err = sqrtprice.Amount0Delta(sqrtLower, sqrtUpper, magnitude, adding)
		if err != nil {
			return pool.BalanceDelta{}, err
		}
		amount1 = new(big.Int)
	case current.Cmp(sqrtUpper) >= 0:
		// Entirely in currency1.
		amount0 = new(big.Int)
		amount1 = sqrtprice.Amount1Delta(sqrtLower, sqrtUpper, magnitude, adding)
	default:
		amount0, err = sqrtprice.Amount0Delta(current, sqrtUpper, magnitude, adding)
		if err != nil {
			return pool.BalanceDelta{}, err
		}
		amount1 = sqrtprice.Amount1Delta(sqrtLower, current, magnitude, adding)

		newLiquidity := new(big.Int).Add(ps.liquidity, liquidityDelta)
		if newLiquidity.Sign() < 0 {
			return pool.BalanceDelta{}, ErrInsufficientLiquidity
		}
		ps.liquidity = newLiquidity
	}

	delta := pool.ZeroDelta()
	if adding {
		delta.Amount0.Neg(amount0)
		delta.Amount1.Neg(amount1)
	} else {
		delta.Amount0.Set(amount0)
		delta.Amount1.Set(amount1)
	}

	s.account(key.Currency0).Add(s.account(key.Currency0), delta.Amount0)
	s.account(key.Currency1).Add(s.account(key.Currency1), delta.Amount1)

	return pool.NewDelta(delta.Amount0, delta.Amount1), nil
}

// Swap executes a swap against the pool, invoking its hooks at the pre- and
// post-trade insertion points and enforcing side exclusivity between them.
func (s *memSession) Swap(key pool.Key, params pool.SwapParams) (SwapResult, error) {
	if err := s.authorize(); err != nil {
		return SwapResult{}, err
	}
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return SwapResult{}, ErrZeroSwapAmount
	}

	ps, err := s.state(key.ID())
	if err != nil {
		return SwapResult{}, err
	}

	s.engine.mu.Lock()
	hooks := s.engine.hooks[key.Hooks]
	s.engine.mu.Unlock()

	beforeAdjustment := new(big.Int)
	afterAdjustment := new(big.Int)

	s.inSwap = true
	defer func() { s.inSwap = false }()

	if hooks != nil {
		ack, adj, err := hooks.BeforeSwap(key, params)
		if err != nil {
			return SwapResult{}, err
		}
		if ack == ([4]byte{}) {
			return SwapResult{}, ErrInvalidHookAck
		}
		if adj != nil {
			beforeAdjustment.Set(adj)
		}
	}

	if ps.liquidity.Sign() == 0 {
		return SwapResult{}, ErrInsufficientLiquidity
	}

	next, curveDelta, err := swapStep(ps.sqrtPrice, ps.liquidity, params)
	if err != nil {
		return SwapResult{}, err
	}

	if hooks != nil {
		adj, err := hooks.AfterSwap(key, params, curveDelta)
		if err != nil {
			return SwapResult{}, err
		}
		if adj != nil {
			afterAdjustment.Set(adj)
		}
	}

	// A hook may charge on the specified or the unspecified side, never both.
	if beforeAdjustment.Sign() != 0 && afterAdjustment.Sign() != 0 {
		return SwapResult{}, ErrBothSidesAdjusted
	}

	specifiedSlot0 := params.SpecifiedIsCurrency0()
	traderDelta := pool.NewDelta(curveDelta.Amount0, curveDelta.Amount1)
	traderDelta.Amount(specifiedSlot0).Sub(traderDelta.Amount(specifiedSlot0), beforeAdjustment)
	traderDelta.Amount(!specifiedSlot0).Sub(traderDelta.Amount(!specifiedSlot0), afterAdjustment)

	ps.sqrtPrice = next
	ps.tick = tickFromSqrtPrice(next)

	s.account(key.Currency0).Add(s.account(key.Currency0), traderDelta.Amount0)
	s.account(key.Currency1).Add(s.account(key.Currency1), traderDelta.Amount1)

	feePaid := new(big.Int).Add(beforeAdjustment, afterAdjustment)
	return SwapResult{Delta: pool.NewDelta(traderDelta.Amount0, traderDelta.Amount1), FeePaid: feePaid}, nil
}

// Donate credits amounts to the pool's liquidity providers. Mid-swap
// donations are funded by the trader's compensating adjustment; standalone
// donations are owed by the session opener.
func (s *memSession) Donate(key pool.Key, amount0, amount1 *big.Int) error {
	if err := s.authorize(); err != nil {
		return err
	}
	if amount0 == nil || amount1 == nil || amount0.Sign() < 0 || amount1.Sign() < 0 {
		return ErrZeroSwapAmount
	}

	ps, err := s.state(key.ID())
	if err != nil {
		return err
	}

	ps.donated0.Add(ps.donated0, amount0)
	ps.donated1.Add(ps.donated1, amount1)

	if !s.inSwap {
		s.account(key.Currency0).Sub(s.account(key.Currency0), amount0)
		s.account(key.Currency1).Sub(s.account(key.Currency1), amount1)
	}
	return nil
}

// Settle pays down an owed (negative) delta.
func (s *memSession) Settle(c currency.Currency, amount *big.Int) error {
	if err := s.authorize(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroSwapAmount
	}

	delta := s.account(c)
	delta.Add(delta, amount)
	if delta.Sign() > 0 {
		return fmt.Errorf("%w: %s over by %s", ErrSettleExceeds, c.String(), delta)
	}
	return nil
}

// Take withdraws a credited (positive) delta to the recipient.
func (s *memSession) Take(c currency.Currency, recipient common.Address, amount *big.Int) error {
	if err := s.authorize(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroSwapAmount
	}

	delta := s.account(c)
	if delta.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s", ErrTakeExceeds, c.String(), delta)
	}
	delta.Sub(delta, amount)

	s.payouts = append(s.payouts, payout{c: c, recipient: recipient, amount: new(big.Int).Set(amount)})
	return nil
}
