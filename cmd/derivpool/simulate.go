package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"derivpool/internal/config"
	"derivpool/internal/currency"
	"derivpool/internal/engine"
	"derivpool/internal/hook"
	"derivpool/internal/pool"
	"derivpool/internal/sqrtprice"
	"derivpool/internal/topology"
)

// Demo hierarchy used by the simulate command: a native/parent root and a
// parent/derivative child, both priced at 1.
var (
	simHooks  = common.HexToAddress("0x00000000000000000000000000000000000ff00c")
	simOpener = common.HexToAddress("0x0000000000000000000000000000000000000001")
	simParent = currency.FromAddress(common.HexToAddress("0x00000000000000000000000000000000000000aa"))
	simDeriv  = currency.FromAddress(common.HexToAddress("0x00000000000000000000000000000000000000bb"))
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount, ok := new(big.Int).SetString(cfg.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("amount must be a positive integer, got %s", cfg.Amount)
	}
	if !cfg.ExactOutput {
		amount.Neg(amount)
	}
	liquidity, ok := new(big.Int).SetString(cfg.Liquidity, 10)
	if !ok || liquidity.Sign() <= 0 {
		return fmt.Errorf("liquidity must be a positive integer, got %s", cfg.Liquidity)
	}

	mem := engine.NewMemory(logger)
	registry := topology.NewRegistry(logger, nil)
	mem.RegisterHooks(simHooks, hook.New(registry, mem, logger))

	rootKey, _, err := pool.NewKey(currency.Native, simParent, 3000, 60, simHooks)
	if err != nil {
		return err
	}
	childKey, _, err := pool.NewKey(simParent, simDeriv, 3000, 60, simHooks)
	if err != nil {
		return err
	}

	if err := registry.RegisterRoot(rootKey, topology.FeeConfig{
		TotalFeeBps:   cfg.TotalFeeBps,
		ChildShareBps: cfg.TotalFeeBps,
	}); err != nil {
		return err
	}
	if err := registry.RegisterChild(childKey, rootKey, topology.FeeConfig{
		TotalFeeBps:   cfg.TotalFeeBps,
		ChildShareBps: cfg.ChildShareBps,
	}); err != nil {
		return err
	}

	priceOne := new(big.Int).Set(sqrtprice.Q96)
	if err := mem.Initialize(rootKey, priceOne); err != nil {
		return err
	}
	if err := mem.Initialize(childKey, priceOne); err != nil {
		return err
	}

	_, err = mem.Unlock(simOpener, func(s engine.Session) ([]byte, error) {
		delta, err := s.ModifyLiquidity(childKey, -887220, 887220, liquidity)
		if err != nil {
			return nil, err
		}
		if err := s.Settle(childKey.Currency0, new(big.Int).Neg(delta.Amount0)); err != nil {
			return nil, err
		}
		return nil, s.Settle(childKey.Currency1, new(big.Int).Neg(delta.Amount1))
	})
	if err != nil {
		return fmt.Errorf("seed liquidity: %w", err)
	}

	var result engine.SwapResult
	_, err = mem.Unlock(simOpener, func(s engine.Session) ([]byte, error) {
		r, err := s.Swap(childKey, pool.SwapParams{
			ZeroForOne:      cfg.ZeroForOne,
			AmountSpecified: amount,
		})
		if err != nil {
			return nil, err
		}
		result = r
		if err := resolve(s, childKey.Currency0, r.Delta.Amount0); err != nil {
			return nil, err
		}
		return nil, resolve(s, childKey.Currency1, r.Delta.Amount1)
	})
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	childDon0, childDon1, err := mem.DonatedTotals(childKey.ID())
	if err != nil {
		return err
	}
	rootDon0, rootDon1, err := mem.DonatedTotals(rootKey.ID())
	if err != nil {
		return err
	}

	logger.Info("swap executed",
		zap.Bool("zero_for_one", cfg.ZeroForOne),
		zap.Bool("exact_output", cfg.ExactOutput),
		zap.String("amount_specified", amount.String()),
		zap.String("trader_delta0", result.Delta.Amount0.String()),
		zap.String("trader_delta1", result.Delta.Amount1.String()),
		zap.String("fee_paid", result.FeePaid.String()),
		zap.String("child_donated0", childDon0.String()),
		zap.String("child_donated1", childDon1.String()),
		zap.String("parent_donated0", rootDon0.String()),
		zap.String("parent_donated1", rootDon1.String()),
	)
	return nil
}

func resolve(s engine.Session, c currency.Currency, delta *big.Int) error {
	switch {
	case delta.Sign() < 0:
		return s.Settle(c, new(big.Int).Neg(delta))
	case delta.Sign() > 0:
		return s.Take(c, simOpener, delta)
	}
	return nil
}
