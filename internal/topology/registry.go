package topology

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"derivpool/internal/model"
	"derivpool/internal/pool"
	"derivpool/internal/storage"
)

// BpsDenominator is the fee basis-point scale.
const BpsDenominator = 10000

var (
	ErrNotNativePaired      = errors.New("root pool must pair with the native asset")
	ErrSharedAssetAmbiguous = errors.New("pools must share exactly one asset")
	ErrParentNotRegistered  = errors.New("parent pool not registered")
	ErrTransitiveParent     = errors.New("parent pool is itself a child")
	ErrFeeBoundsInvalid     = errors.New("fee bounds invalid")
	ErrAlreadyRegistered    = errors.New("pool already registered")
	ErrNotRegistered        = errors.New("pool not registered")
)

// FeeConfig is the caller-supplied half of a registration.
type FeeConfig struct {
	TotalFeeBps   uint64
	ChildShareBps uint64
}

// FeeSplitConfig is the stored per-pool fee routing configuration. The zero
// value is the "disabled" sentinel returned for unregistered pools.
type FeeSplitConfig struct {
	Enabled           bool
	TotalFeeBps       uint64
	ChildShareBps     uint64
	HasParent         bool
	ParentKey         pool.Key
	SharedIsChildLow  bool
	SharedIsParentLow bool
}

// Registry owns every FeeSplitConfig, keyed by canonical pool id. Nesting is
// exactly one level: a child's parent must be a registered root, and the
// registry never follows ParentKey as a child itself.
type Registry struct {
	mu      sync.Mutex
	configs map[common.Hash]FeeSplitConfig
	logger  *zap.Logger
	sink    storage.Sink
}

func NewRegistry(logger *zap.Logger, sink storage.Sink) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = storage.Discard{}
	}
	return &Registry{
		configs: make(map[common.Hash]FeeSplitConfig),
		logger:  logger,
		sink:    sink,
	}
}

// RegisterRoot stores a root pool entry. One of the pool's currencies must be
// the native asset. The shared-asset slot points at the non-native currency,
// the one a future child pool can pair against.
func (r *Registry) RegisterRoot(key pool.Key, fees FeeConfig) error {
	if err := validateFees(fees); err != nil {
		return err
	}
	if !key.Currency0.IsNative() && !key.Currency1.IsNative() {
		return ErrNotNativePaired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := key.ID()
	if _, ok := r.configs[id]; ok {
		return ErrAlreadyRegistered
	}

	r.configs[id] = FeeSplitConfig{
		Enabled:          true,
		TotalFeeBps:      fees.TotalFeeBps,
		ChildShareBps:    fees.ChildShareBps,
		SharedIsChildLow: !key.Currency0.IsNative(),
	}

	r.logger.Info("root pool registered",
		zap.String("pool_id", id.Hex()),
		zap.String("currency0", key.Currency0.String()),
		zap.String("currency1", key.Currency1.String()),
		zap.Uint64("total_fee_bps", fees.TotalFeeBps),
	)

	return r.emit(key, model.KindRootPool, "", fees)
}

// RegisterChild stores a child pool entry beneath an already-registered
// parent. The two keys must share exactly one currency; the slot the shared
// currency occupies in each key is cached for swap-time fee routing.
func (r *Registry) RegisterChild(key, parentKey pool.Key, fees FeeConfig) error {
	if err := validateFees(fees); err != nil {
		return err
	}

	sharedIsChildLow, sharedIsParentLow, err := sharedSlots(key, parentKey)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parentID := parentKey.ID()
	parentCfg, ok := r.configs[parentID]
	if !ok {
		return ErrParentNotRegistered
	}
	if parentCfg.HasParent {
		return ErrTransitiveParent
	}

	id := key.ID()
	if _, ok := r.configs[id]; ok {
		return ErrAlreadyRegistered
	}

	r.configs[id] = FeeSplitConfig{
		Enabled:           true,
		TotalFeeBps:       fees.TotalFeeBps,
		ChildShareBps:     fees.ChildShareBps,
		HasParent:         true,
		ParentKey:         parentKey,
		SharedIsChildLow:  sharedIsChildLow,
		SharedIsParentLow: sharedIsParentLow,
	}

	r.logger.Info("child pool registered",
		zap.String("pool_id", id.Hex()),
		zap.String("parent_pool_id", parentID.Hex()),
		zap.Bool("shared_is_child_low", sharedIsChildLow),
		zap.Bool("shared_is_parent_low", sharedIsParentLow),
		zap.Uint64("total_fee_bps", fees.TotalFeeBps),
		zap.Uint64("child_share_bps", fees.ChildShareBps),
	)

	return r.emit(key, model.KindChildPool, parentID.Hex(), fees)
}

// Lookup returns the stored config, or the disabled sentinel when the pool is
// unregistered. Unregistered pools are zero-fee, never an error: a swap on a
// non-participating pool must still succeed.
func (r *Registry) Lookup(key pool.Key) FeeSplitConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[key.ID()]
}

// Reconfigure replaces the fee bounds of an existing entry. Topology fields
// are immutable; only the split can change. Possession of the Registry handle
// is the authorization.
func (r *Registry) Reconfigure(key pool.Key, fees FeeConfig) error {
	if err := validateFees(fees); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := key.ID()
	cfg, ok := r.configs[id]
	if !ok {
		return ErrNotRegistered
	}

	cfg.TotalFeeBps = fees.TotalFeeBps
	cfg.ChildShareBps = fees.ChildShareBps
	r.configs[id] = cfg

	r.logger.Info("pool fees reconfigured",
		zap.String("pool_id", id.Hex()),
		zap.Uint64("total_fee_bps", fees.TotalFeeBps),
		zap.Uint64("child_share_bps", fees.ChildShareBps),
	)
	return nil
}

func validateFees(fees FeeConfig) error {
	if fees.TotalFeeBps > BpsDenominator {
		return fmt.Errorf("%w: total %d > %d", ErrFeeBoundsInvalid, fees.TotalFeeBps, BpsDenominator)
	}
	if fees.ChildShareBps > fees.TotalFeeBps {
		return fmt.Errorf("%w: child share %d > total %d", ErrFeeBoundsInvalid, fees.ChildShareBps, fees.TotalFeeBps)
	}
	return nil
}

// sharedSlots evaluates the four (child-slot, parent-slot) equality
// combinations and requires exactly one match.
func sharedSlots(child, parent pool.Key) (sharedIsChildLow, sharedIsParentLow bool, err error) {
	matches := 0
	for _, m := range []struct {
		childLow, parentLow bool
		equal               bool
	}{
		{true, true, child.Currency0 == parent.Currency0},
		{true, false, child.Currency0 == parent.Currency1},
		{false, true, child.Currency1 == parent.Currency0},
		{false, false, child.Currency1 == parent.Currency1},
	} {
		if m.equal {
			matches++
			sharedIsChildLow = m.childLow
			sharedIsParentLow = m.parentLow
		}
	}
	if matches != 1 {
		return false, false, fmt.Errorf("%w: %d shared", ErrSharedAssetAmbiguous, matches)
	}
	return sharedIsChildLow, sharedIsParentLow, nil
}

// emit is called with r.mu held; sink writes are the caller's durability
// best-effort and do not roll back a registration.
func (r *Registry) emit(key pool.Key, kind, parentID string, fees FeeConfig) error {
	record := model.PoolRecord{
		Kind:          kind,
		PoolID:        key.ID().Hex(),
		Currency0:     key.Currency0.String(),
		Currency1:     key.Currency1.String(),
		Fee:           key.Fee,
		TickSpacing:   key.TickSpacing,
		Hooks:         key.Hooks.Hex(),
		ParentPoolID:  parentID,
		TotalFeeBps:   fees.TotalFeeBps,
		ChildShareBps: fees.ChildShareBps,
		RegisteredAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.sink.PutPoolRecords([]model.PoolRecord{record}); err != nil {
		r.logger.Warn("pool record sink failed", zap.Error(err), zap.String("pool_id", record.PoolID))
	}
	return nil
}
