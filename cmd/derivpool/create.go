package main

import (
	"context"
	"fmt"
	"math/big"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"derivpool/internal/config"
	"derivpool/internal/currency"
	"derivpool/internal/engine"
	"derivpool/internal/hook"
	"derivpool/internal/orchestrator"
	"derivpool/internal/pool"
	"derivpool/internal/sqrtprice"
	"derivpool/internal/storage"
	"derivpool/internal/storage/postgres"
	"derivpool/internal/topology"
)

func runCreate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCreate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ParentToken == "" {
		return fmt.Errorf("parent token address is required")
	}
	if !common.IsHexAddress(cfg.ParentToken) {
		return fmt.Errorf("invalid parent token address: %s", cfg.ParentToken)
	}
	parentToken := currency.FromAddress(common.HexToAddress(cfg.ParentToken))

	deployer := common.HexToAddress(cfg.Deployer)
	hooksAddr := common.HexToAddress(cfg.HookAddress)

	price, err := decimal.NewFromString(cfg.Price)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	sqrtPriceX96, err := priceToSqrtX96(price)
	if err != nil {
		return err
	}

	seed, ok := new(big.Int).SetString(cfg.Seed, 10)
	if !ok {
		return fmt.Errorf("parse seed amount: %s", cfg.Seed)
	}
	contribution, ok := new(big.Int).SetString(cfg.Contribution, 10)
	if !ok {
		return fmt.Errorf("parse contribution: %s", cfg.Contribution)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink storage.Sink
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
	} else {
		sink = storage.NewJsonlSink(cfg.Out)
	}

	mem := engine.NewMemory(logger)
	registry := topology.NewRegistry(logger, sink)
	mem.RegisterHooks(hooksAddr, hook.New(registry, mem, logger))

	orch := orchestrator.New(deployer, hooksAddr, registry, mem, orchestrator.NewMemoryVault(), sink, logger)

	rootKey, _, err := pool.NewKey(currency.Native, parentToken, cfg.Fee, cfg.TickSpacing, hooksAddr)
	if err != nil {
		return err
	}
	if err := orch.RegisterRootPool(rootKey, new(big.Int).Set(sqrtprice.Q96), topology.FeeConfig{
		TotalFeeBps:   cfg.TotalFeeBps,
		ChildShareBps: cfg.TotalFeeBps,
	}); err != nil {
		return fmt.Errorf("register root pool: %w", err)
	}

	meta := orchestrator.CollectionMeta{Name: cfg.Name, Symbol: cfg.Symbol, TokenURI: cfg.TokenURI}
	salt, err := orchestrator.MineSalt(deployer, parentToken, meta, [32]byte{}, cfg.SaltLimit)
	if err != nil {
		return err
	}

	result, err := orch.CreateDerivative(orchestrator.CreateParams{
		Caller:             deployer,
		ParentToken:        parentToken,
		Meta:               meta,
		Salt:               salt,
		Fee:                cfg.Fee,
		TickSpacing:        cfg.TickSpacing,
		SqrtPriceX96:       sqrtPriceX96,
		TickLower:          int32(cfg.TickLower),
		TickUpper:          int32(cfg.TickUpper),
		SeedSupply:         seed,
		ParentContribution: contribution,
		FeeConfig: topology.FeeConfig{
			TotalFeeBps:   cfg.TotalFeeBps,
			ChildShareBps: cfg.ChildShareBps,
		},
	})
	if err != nil {
		return err
	}

	logger.Info("derivative pool created",
		zap.String("token", result.Token.Hex()),
		zap.String("collection", result.Collection.Hex()),
		zap.String("pool_id", result.PoolID.Hex()),
		zap.String("liquidity", result.Liquidity.String()),
		zap.String("refund_parent", result.RefundParent.String()),
		zap.String("refund_derivative", result.RefundDerivative.String()),
	)
	return nil
}

// priceToSqrtX96 converts a decimal price into its Q64.96 square root.
func priceToSqrtX96(price decimal.Decimal) (*big.Int, error) {
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("price must be positive, got %s", price)
	}

	f, ok := new(big.Float).SetPrec(192).SetString(price.String())
	if !ok {
		return nil, fmt.Errorf("parse price %s", price)
	}
	sqrt := new(big.Float).SetPrec(192).Sqrt(f)
	sqrt.Mul(sqrt, new(big.Float).SetInt(sqrtprice.Q96))

	out, _ := sqrt.Int(nil)
	return out, nil
}
