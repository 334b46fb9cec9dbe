// Package orchestrator runs the derivative-creation workflow: resolve the
// parent pool, deploy the derivative token and collection pair at a
// deterministic address, register the child pool, initialize its price, seed
// liquidity and refund whatever the seeding left over.
package orchestrator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"derivpool/internal/currency"
	"derivpool/internal/engine"
	"derivpool/internal/liquidity"
	"derivpool/internal/model"
	"derivpool/internal/pool"
	"derivpool/internal/storage"
	"derivpool/internal/topology"
)

var (
	ErrParentHasNoPool          = errors.New("parent token has no registered pool")
	ErrOrderingViolation        = errors.New("derivative token must sort above the parent token")
	ErrHookMismatch             = errors.New("pool key carries a foreign hook address")
	ErrDeploymentMismatch       = errors.New("deployed token does not match the derived address")
	ErrInsufficientContribution = errors.New("parent contribution does not cover the seed")
	ErrInvalidCreateParams      = errors.New("invalid creation parameters")
)

// CollectionMeta is the constructor payload for a derivative collection. It
// feeds the deterministic address derivation, so two creations with the same
// deployer, salt and metadata collide.
type CollectionMeta struct {
	Name     string
	Symbol   string
	TokenURI string
}

// Vault deploys and manages derivative token/collection pairs. The engine
// never moves real balances; the vault is the system of record for supply.
type Vault interface {
	// Deploy creates the pair at the address derived from (deployer, salt,
	// meta) and returns both addresses.
	Deploy(deployer common.Address, salt [32]byte, meta CollectionMeta) (token, collection common.Address, err error)

	// Mint credits freshly created derivative tokens to a holder.
	Mint(token, to common.Address, amount *big.Int) error

	// Redeem burns a holder's derivative tokens back into the collection.
	Redeem(token, from common.Address, amount *big.Int) error

	// Token resolves a collection to its paired derivative token.
	Token(collection common.Address) (common.Address, bool)
}

// CreateParams carries one derivative-creation request. Zero recipient
// addresses default to the caller.
type CreateParams struct {
	Caller             common.Address
	ParentToken        currency.Currency
	Meta               CollectionMeta
	Salt               [32]byte
	Fee                uint32
	TickSpacing        int32
	SqrtPriceX96       *big.Int
	TickLower          int32
	TickUpper          int32
	SeedSupply         *big.Int
	ParentContribution *big.Int
	FeeConfig          topology.FeeConfig
	TokenRecipient     common.Address
	RefundRecipient    common.Address
}

// CreateResult reports the created pair, its pool, and the leftovers
// returned to the recipients.
type CreateResult struct {
	Token            common.Address
	Collection       common.Address
	PoolID           common.Hash
	PoolKey          pool.Key
	Liquidity        *big.Int
	RefundParent     *big.Int
	RefundDerivative *big.Int
}

// derivativeInfo is the persisted mapping for one created derivative.
type derivativeInfo struct {
	collection  common.Address
	parentToken currency.Currency
	poolID      common.Hash
}

// Orchestrator wires the registry, engine, bootstrapper and vault into the
// creation workflow. It owns the parent-token and derivative mappings.
type Orchestrator struct {
	mu sync.Mutex

	deployer common.Address
	hooks    common.Address

	registry     *topology.Registry
	engine       engine.Engine
	bootstrapper *liquidity.Bootstrapper
	vault        Vault
	sink         storage.Sink
	logger       *zap.Logger

	parents     map[currency.Currency]pool.Key
	derivatives map[common.Address]derivativeInfo
	collections map[common.Address]common.Address
	refunds     map[currency.Currency]map[common.Address]*big.Int
}

func New(deployer, hooks common.Address, registry *topology.Registry, eng engine.Engine, vault Vault, sink storage.Sink, logger *zap.Logger) *Orchestrator {
	if sink == nil {
		sink = storage.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		deployer:     deployer,
		hooks:        hooks,
		registry:     registry,
		engine:       eng,
		bootstrapper: liquidity.NewBootstrapper(eng, logger),
		vault:        vault,
		sink:         sink,
		logger:       logger,
		parents:      make(map[currency.Currency]pool.Key),
		derivatives:  make(map[common.Address]derivativeInfo),
		collections:  make(map[common.Address]common.Address),
		refunds:      make(map[currency.Currency]map[common.Address]*big.Int),
	}
}

// RegisterRootPool registers a native-paired root pool, initializes it at the
// given price and records its non-native token as a creatable parent.
func (o *Orchestrator) RegisterRootPool(key pool.Key, sqrtPriceX96 *big.Int, cfg topology.FeeConfig) error {
	if key.Hooks != o.hooks {
		return fmt.Errorf("%w: %s", ErrHookMismatch, key.Hooks.Hex())
	}
	if err := o.registry.RegisterRoot(key, cfg); err != nil {
		return err
	}
	if err := o.engine.Initialize(key, sqrtPriceX96); err != nil {
		return err
	}

	shared := key.Currency1
	if key.Currency1.IsNative() {
		shared = key.Currency0
	}

	o.mu.Lock()
	o.parents[shared] = key
	o.mu.Unlock()

	o.logger.Info("root pool registered",
		zap.String("pool_id", key.ID().Hex()),
		zap.String("parent_token", shared.String()),
	)
	return nil
}

// ParentPool resolves a parent token to its root pool key.
func (o *Orchestrator) ParentPool(token currency.Currency) (pool.Key, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key, ok := o.parents[token]
	return key, ok
}

// DerivativeOf resolves a collection to its derivative token.
func (o *Orchestrator) DerivativeOf(collection common.Address) (common.Address, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	token, ok := o.collections[collection]
	return token, ok
}

// CreateDerivative runs the full workflow. Any failure aborts with nothing
// registered and no liquidity posted; the engine's unlock makes the seeding
// step atomic on its own.
func (o *Orchestrator) CreateDerivative(p CreateParams) (CreateResult, error) {
	o.mu.Lock()
	parentKey, ok := o.parents[p.ParentToken]
	o.mu.Unlock()
	if !ok {
		return CreateResult{}, fmt.Errorf("%w: %s", ErrParentHasNoPool, p.ParentToken)
	}
	if parentKey.Hooks != o.hooks {
		return CreateResult{}, fmt.Errorf("%w: parent %s", ErrHookMismatch, parentKey.Hooks.Hex())
	}

	if p.SqrtPriceX96 == nil || p.SqrtPriceX96.Sign() <= 0 {
		return CreateResult{}, fmt.Errorf("%w: starting price", ErrInvalidCreateParams)
	}
	if p.TickLower >= p.TickUpper {
		return CreateResult{}, fmt.Errorf("%w: tick range [%d, %d)", ErrInvalidCreateParams, p.TickLower, p.TickUpper)
	}
	if p.SeedSupply == nil || p.SeedSupply.Sign() <= 0 {
		return CreateResult{}, fmt.Errorf("%w: seed supply", ErrInvalidCreateParams)
	}

	tokenRecipient := p.TokenRecipient
	if tokenRecipient == (common.Address{}) {
		tokenRecipient = p.Caller
	}
	refundRecipient := p.RefundRecipient
	if refundRecipient == (common.Address{}) {
		refundRecipient = p.Caller
	}

	// The derivative must land in the high slot so the shared asset's slot
	// bookkeeping is unambiguous. The salt decides the address, so a bad
	// draw is re-mineable by the caller.
	derived := DeriveTokenAddress(o.deployer, p.Salt, p.Meta)
	if !p.ParentToken.Less(currency.FromAddress(derived)) {
		return CreateResult{}, fmt.Errorf("%w: token %s vs parent %s", ErrOrderingViolation, derived.Hex(), p.ParentToken)
	}

	token, collection, err := o.vault.Deploy(o.deployer, p.Salt, p.Meta)
	if err != nil {
		return CreateResult{}, fmt.Errorf("deploy derivative pair: %w", err)
	}
	if token != derived {
		return CreateResult{}, fmt.Errorf("%w: derived %s, deployed %s", ErrDeploymentMismatch, derived.Hex(), token.Hex())
	}

	childKey, _, err := pool.NewKey(p.ParentToken, currency.FromAddress(token), p.Fee, p.TickSpacing, o.hooks)
	if err != nil {
		return CreateResult{}, err
	}

	if err := o.registry.RegisterChild(childKey, parentKey, p.FeeConfig); err != nil {
		return CreateResult{}, err
	}
	if err := o.engine.Initialize(childKey, p.SqrtPriceX96); err != nil {
		return CreateResult{}, err
	}

	// The seed amount is expressed in the derivative asset, which ordering
	// pinned to the high slot.
	seed, err := o.bootstrapper.Seed(p.Caller, liquidity.SeedParams{
		Key:          childKey,
		TickLower:    p.TickLower,
		TickUpper:    p.TickUpper,
		SqrtPriceX96: p.SqrtPriceX96,
		Amount:       p.SeedSupply,
	})
	if err != nil {
		return CreateResult{}, err
	}

	contribution := p.ParentContribution
	if contribution == nil {
		contribution = new(big.Int)
	}
	if contribution.Cmp(seed.Amount0) < 0 {
		return CreateResult{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientContribution, seed.Amount0, contribution)
	}

	refundParent := new(big.Int).Sub(contribution, seed.Amount0)
	refundDerivative := new(big.Int).Sub(p.SeedSupply, seed.Amount1)
	if refundDerivative.Sign() > 0 {
		if err := o.vault.Mint(token, tokenRecipient, refundDerivative); err != nil {
			return CreateResult{}, fmt.Errorf("refund derivative supply: %w", err)
		}
	}
	if refundParent.Sign() > 0 {
		o.creditRefund(p.ParentToken, refundRecipient, refundParent)
	}

	o.mu.Lock()
	o.derivatives[token] = derivativeInfo{
		collection:  collection,
		parentToken: p.ParentToken,
		poolID:      childKey.ID(),
	}
	o.collections[collection] = token
	o.mu.Unlock()

	o.emit(model.DerivativeRecord{
		Token:        token.Hex(),
		Collection:   collection.Hex(),
		ParentToken:  p.ParentToken.String(),
		PoolID:       childKey.ID().Hex(),
		SqrtPriceX96: p.SqrtPriceX96.String(),
		Liquidity:    seed.Liquidity.String(),
		Refund0:      refundParent.String(),
		Refund1:      refundDerivative.String(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	})

	o.logger.Info("derivative created",
		zap.String("token", token.Hex()),
		zap.String("collection", collection.Hex()),
		zap.String("pool_id", childKey.ID().Hex()),
		zap.String("liquidity", seed.Liquidity.String()),
		zap.String("refund_parent", refundParent.String()),
		zap.String("refund_derivative", refundDerivative.String()),
		zap.String("refund_recipient", refundRecipient.Hex()),
	)

	return CreateResult{
		Token:            token,
		Collection:       collection,
		PoolID:           childKey.ID(),
		PoolKey:          childKey,
		Liquidity:        seed.Liquidity,
		RefundParent:     refundParent,
		RefundDerivative: refundDerivative,
	}, nil
}

// creditRefund books a parent-asset leftover to its recipient. The parent
// token contract is an external collaborator, so the orchestrator is the
// system of record for who is owed what, the same way the vault is for
// derivative supply.
func (o *Orchestrator) creditRefund(c currency.Currency, recipient common.Address, amount *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	byRecipient, ok := o.refunds[c]
	if !ok {
		byRecipient = make(map[common.Address]*big.Int)
		o.refunds[c] = byRecipient
	}
	total, ok := byRecipient[recipient]
	if !ok {
		total = new(big.Int)
		byRecipient[recipient] = total
	}
	total.Add(total, amount)
}

// RefundBalance reports the parent-asset refunds credited to a recipient.
func (o *Orchestrator) RefundBalance(c currency.Currency, recipient common.Address) *big.Int {
	o.mu.Lock()
	defer o.mu.Unlock()

	byRecipient, ok := o.refunds[c]
	if !ok {
		return new(big.Int)
	}
	total, ok := byRecipient[recipient]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(total)
}

func (o *Orchestrator) emit(rec model.DerivativeRecord) {
	if err := o.sink.PutDerivativeRecords([]model.DerivativeRecord{rec}); err != nil {
		o.logger.Warn("derivative record not persisted", zap.Error(err))
	}
}
