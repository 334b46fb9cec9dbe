package pool

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"derivpool/internal/currency"
)

var (
	tokenA = currency.FromAddress(common.HexToAddress("0x00000000000000000000000000000000000000aa"))
	tokenB = currency.FromAddress(common.HexToAddress("0x00000000000000000000000000000000000000bb"))
)

func TestNewKeyCanonicalOrder(t *testing.T) {
	key1, aIsLow, err := NewKey(tokenA, tokenB, 3000, 60, common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !aIsLow {
		t.Fatalf("tokenA should be the low slot")
	}

	key2, _, err := NewKey(tokenB, tokenA, 3000, 60, common.Address{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if key1 != key2 {
		t.Fatalf("keys differ under argument order: %+v != %+v", key1, key2)
	}
	if key1.ID() != key2.ID() {
		t.Fatalf("pool ids differ under argument order")
	}
}

func TestKeyIDDependsOnAllFields(t *testing.T) {
	base, _, _ := NewKey(tokenA, tokenB, 3000, 60, common.Address{})
	otherFee, _, _ := NewKey(tokenA, tokenB, 500, 60, common.Address{})
	otherHook, _, _ := NewKey(tokenA, tokenB, 3000, 60, common.HexToAddress("0x01"))

	if base.ID() == otherFee.ID() {
		t.Fatalf("fee tier should change the pool id")
	}
	if base.ID() == otherHook.ID() {
		t.Fatalf("hook address should change the pool id")
	}
}

func TestSpecifiedSideMapping(t *testing.T) {
	cases := []struct {
		name      string
		zeroForOne bool
		amount    int64
		wantSlot0 bool
	}{
		{"zeroForOne exact-input", true, -1000, true},
		{"zeroForOne exact-output", true, 500, false},
		{"oneForZero exact-input", false, -1000, false},
		{"oneForZero exact-output", false, 500, true},
	}

	for _, tc := range cases {
		params := SwapParams{ZeroForOne: tc.zeroForOne, AmountSpecified: big.NewInt(tc.amount)}
		if got := params.SpecifiedIsCurrency0(); got != tc.wantSlot0 {
			t.Fatalf("%s: specified slot0 = %v, want %v", tc.name, got, tc.wantSlot0)
		}
	}
}

func TestBalanceDeltaResolution(t *testing.T) {
	d := NewDelta(big.NewInt(-5), big.NewInt(3))
	if d.IsZero() {
		t.Fatalf("delta should be outstanding")
	}

	d = d.Add(NewDelta(big.NewInt(5), big.NewInt(-3)))
	if !d.IsZero() {
		t.Fatalf("delta should be fully resolved, got %s/%s", d.Amount0, d.Amount1)
	}
}
