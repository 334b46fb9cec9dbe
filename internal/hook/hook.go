// Package hook implements the per-swap fee-split decision engine. Fees on a
// child pool's shared asset are donated to the child's liquidity providers
// and, when a parent is registered, to the parent's; the trader funds the
// donation through a compensating settlement adjustment.
package hook

import (
	"errors"
	"math/big"

	"go.uber.org/zap"

	"derivpool/internal/pool"
	"derivpool/internal/topology"
)

// AckBeforeSwap is the function-identifying acknowledgement the pre-trade
// callback returns to the engine.
var AckBeforeSwap = [4]byte{0x0b, 0x3f, 0x5e, 0x4a}

var (
	ErrDonationFailed = errors.New("fee donation failed")
)

// Donator credits amounts directly to a pool's liquidity providers. The AMM
// engine implements this; the hook never touches reserves any other way.
type Donator interface {
	Donate(key pool.Key, amount0, amount1 *big.Int) error
}

// FeeSplitHook decides, per swap, whether the shared asset is the specified
// or unspecified side and charges the fee at the single callback insertion
// point allowed to adjust that side. It holds no per-swap state: every
// decision is recomputed from the registry and the swap parameters.
type FeeSplitHook struct {
	registry *topology.Registry
	donator  Donator
	logger   *zap.Logger
}

func New(registry *topology.Registry, donator Donator, logger *zap.Logger) *FeeSplitHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeSplitHook{registry: registry, donator: donator, logger: logger}
}

// BeforeSwap is the pre-trade insertion point. It may adjust only the
// specified side, so it acts exactly when the pool's shared asset is the
// specified asset of this swap; otherwise it is a neutral no-op.
func (h *FeeSplitHook) BeforeSwap(key pool.Key, params pool.SwapParams) ([4]byte, *big.Int, error) {
	cfg := h.registry.Lookup(key)
	if !cfg.Enabled || cfg.TotalFeeBps == 0 {
		return AckBeforeSwap, new(big.Int), nil
	}

	if params.SpecifiedIsCurrency0() != cfg.SharedIsChildLow {
		// Shared asset is the unspecified side; AfterSwap handles it.
		return AckBeforeSwap, new(big.Int), nil
	}

	feeBase := new(big.Int).Abs(params.AmountSpecified)
	feeTotal, err := h.distribute(key, cfg, feeBase)
	if err != nil {
		return AckBeforeSwap, nil, err
	}
	return AckBeforeSwap, feeTotal, nil
}

// AfterSwap is the post-trade insertion point. It may adjust only the
// unspecified side; the fee base is the realized amount on that side, read
// from the swap's settlement delta.
func (h *FeeSplitHook) AfterSwap(key pool.Key, params pool.SwapParams, delta pool.BalanceDelta) (*big.Int, error) {
	cfg := h.registry.Lookup(key)
	if !cfg.Enabled || cfg.TotalFeeBps == 0 {
		return new(big.Int), nil
	}

	unspecifiedIsCurrency0 := !params.SpecifiedIsCurrency0()
	if unspecifiedIsCurrency0 != cfg.SharedIsChildLow {
		// Shared asset was the specified side; BeforeSwap already acted.
		return new(big.Int), nil
	}

	feeBase := new(big.Int).Abs(delta.Amount(unspecifiedIsCurrency0))
	return h.distribute(key, cfg, feeBase)
}

// distribute computes the split and performs the donations. The integer
// remainder of the child share goes to the parent so the two always sum to
// the total; with no parent the whole fee stays with the executing pool.
func (h *FeeSplitHook) distribute(key pool.Key, cfg topology.FeeSplitConfig, feeBase *big.Int) (*big.Int, error) {
	feeTotal := bpsShare(feeBase, cfg.TotalFeeBps)
	if feeTotal.Sign() == 0 {
		return feeTotal, nil
	}

	childFee := feeTotal
	if cfg.HasParent {
		childFee = bpsShare(feeBase, cfg.ChildShareBps)
	}

	if err := h.donate(key, cfg.SharedIsChildLow, childFee); err != nil {
		return nil, err
	}

	if cfg.HasParent {
		// Donated even when zero, to keep accounting symmetric.
		parentFee := new(big.Int).Sub(feeTotal, childFee)
		if err := h.donate(cfg.ParentKey, cfg.SharedIsParentLow, parentFee); err != nil {
			return nil, err
		}

		h.logger.Debug("fee split",
			zap.String("pool_id", key.ID().Hex()),
			zap.String("fee_total", feeTotal.String()),
			zap.String("child_fee", childFee.String()),
			zap.String("parent_fee", parentFee.String()),
		)
	}

	return feeTotal, nil
}

func (h *FeeSplitHook) donate(key pool.Key, onCurrency0 bool, amount *big.Int) error {
	zero := new(big.Int)
	var err error
	if onCurrency0 {
		err = h.donator.Donate(key, amount, zero)
	} else {
		err = h.donator.Donate(key, zero, amount)
	}
	if err != nil {
		return errors.Join(ErrDonationFailed, err)
	}
	return nil
}

// bpsShare returns amount * bps / 10000, rounded down.
func bpsShare(amount *big.Int, bps uint64) *big.Int {
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return share.Div(share, big.NewInt(topology.BpsDenominator))
}
