package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "derivpool",
		Short:        "Hierarchical fee-split AMM toolkit",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a derivative pool under a parent token",
		RunE:  runCreate,
	}

	createCmd.Flags().String("deployer", "", "deployer address for deterministic derivation")
	createCmd.Flags().String("hooks", "", "fee-split hook address")
	createCmd.Flags().String("parent", "", "parent token address")
	createCmd.Flags().String("name", "", "collection name")
	createCmd.Flags().String("symbol", "", "collection symbol")
	createCmd.Flags().String("token-uri", "", "collection token URI")
	createCmd.Flags().Uint32("fee", 3000, "pool fee tier")
	createCmd.Flags().Int32("tick-spacing", 60, "pool tick spacing")
	createCmd.Flags().String("price", "1", "starting price (derivative per parent)")
	createCmd.Flags().Int("tick-lower", -887220, "position lower tick")
	createCmd.Flags().Int("tick-upper", 887220, "position upper tick")
	createCmd.Flags().String("seed", "1000000000000000000", "derivative seed supply")
	createCmd.Flags().String("contribution", "0", "parent token contribution")
	createCmd.Flags().Uint64("total-fee-bps", 1000, "total fee in basis points")
	createCmd.Flags().Uint64("child-share-bps", 750, "child share in basis points")
	createCmd.Flags().Int("salt-limit", 65536, "salt mining attempt limit")
	createCmd.Flags().String("out", "./data/records.jsonl", "output JSONL path")
	createCmd.Flags().String("pg-dsn", "", "Postgres DSN (JSONL sink when empty)")
	createCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(createCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Execute one swap on a demo hierarchy and report the fee split",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().Bool("zero-for-one", true, "sell currency0 for currency1")
	simulateCmd.Flags().String("amount", "1000", "swap amount magnitude")
	simulateCmd.Flags().Bool("exact-output", false, "fix the output instead of the input")
	simulateCmd.Flags().String("liquidity", "1000000000000000000", "pool liquidity to seed")
	simulateCmd.Flags().Uint64("total-fee-bps", 1000, "total fee in basis points")
	simulateCmd.Flags().Uint64("child-share-bps", 750, "child share in basis points")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	ticksCmd := &cobra.Command{
		Use:   "ticks",
		Short: "Convert a price into ticks and sqrt prices for both orientations",
		RunE:  runTicks,
	}

	ticksCmd.Flags().String("price", "", "price to convert")
	ticksCmd.Flags().Int32("tick-spacing", 60, "tick spacing to align to")

	root.AddCommand(ticksCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
