package main

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"derivpool/internal/tickmath"
)

// runTicks converts a price into ticks and Q64.96 sqrt prices for both
// canonical orientations. The actual orientation depends on which token lands
// in the low slot, so both are reported.
func runTicks(cmd *cobra.Command, _ []string) error {
	priceFlag, _ := cmd.Flags().GetString("price")
	spacing, _ := cmd.Flags().GetInt32("tick-spacing")

	if priceFlag == "" {
		return fmt.Errorf("price is required")
	}
	price, err := decimal.NewFromString(priceFlag)
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	if price.Sign() <= 0 {
		return fmt.Errorf("price must be positive, got %s", price)
	}

	inverse := decimal.NewFromInt(1).Div(price)

	if err := printOrientation("price as given", price, spacing); err != nil {
		return err
	}
	fmt.Println()
	return printOrientation("price inverted", inverse, spacing)
}

func printOrientation(label string, price decimal.Decimal, spacing int32) error {
	tick, err := priceToTick(price)
	if err != nil {
		return err
	}
	aligned, err := tickmath.Align(tick, spacing)
	if err != nil {
		return err
	}

	sqrtAtTick, err := tickmath.SqrtRatioAtTick(aligned)
	if err != nil {
		return err
	}
	sqrtDirect, err := priceToSqrtX96(price)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", label, price)
	fmt.Printf("  tick:              %d (price %.6f)\n", tick, tickToPrice(tick))
	fmt.Printf("  aligned tick:      %d (spacing %d, price %.6f)\n", aligned, spacing, tickToPrice(aligned))
	fmt.Printf("  sqrtPriceX96:      %s\n", sqrtDirect)
	fmt.Printf("  sqrtPriceX96@tick: %s\n", sqrtAtTick)
	return nil
}

// priceToTick returns floor(log(price) / log(1.0001)).
func priceToTick(price decimal.Decimal) (int32, error) {
	f, _ := price.Float64()
	if f <= 0 {
		return 0, fmt.Errorf("price out of float range: %s", price)
	}
	tick := math.Floor(math.Log(f) / math.Log(1.0001))
	if tick < float64(tickmath.MinTick) || tick > float64(tickmath.MaxTick) {
		return 0, fmt.Errorf("price %s maps outside the tick range", price)
	}
	return int32(tick), nil
}

func tickToPrice(tick int32) float64 {
	return math.Pow(1.0001, float64(tick))
}
