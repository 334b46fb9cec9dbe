package topology

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"derivpool/internal/currency"
	"derivpool/internal/pool"
)

var (
	hookAddr = common.HexToAddress("0x00000000000000000000000000000000000ff00c")
	parentTk = currency.FromAddress(common.HexToAddress("0x0000000000000000000000000000000000000aaa"))
	derivTk  = currency.FromAddress(common.HexToAddress("0x0000000000000000000000000000000000000bbb"))
	otherTk  = currency.FromAddress(common.HexToAddress("0x0000000000000000000000000000000000000ccc"))
)

func rootKey(t *testing.T) pool.Key {
	t.Helper()
	key, _, err := pool.NewKey(currency.Native, parentTk, 3000, 60, hookAddr)
	if err != nil {
		t.Fatalf("root key: %v", err)
	}
	return key
}

func childKey(t *testing.T) pool.Key {
	t.Helper()
	key, _, err := pool.NewKey(parentTk, derivTk, 3000, 60, hookAddr)
	if err != nil {
		t.Fatalf("child key: %v", err)
	}
	return key
}

func TestRegisterRoot(t *testing.T) {
	reg := NewRegistry(nil, nil)
	root := rootKey(t)

	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 1000, ChildShareBps: 1000}); err != nil {
		t.Fatalf("register root: %v", err)
	}

	cfg := reg.Lookup(root)
	if !cfg.Enabled || cfg.HasParent {
		t.Fatalf("unexpected root config: %+v", cfg)
	}
	// Native is the zero address and always sorts low, so the shareable
	// (non-native) currency occupies the high slot.
	if cfg.SharedIsChildLow {
		t.Fatalf("shared slot should point at the non-native currency in the high slot")
	}
}

func TestRegisterRootRequiresNative(t *testing.T) {
	reg := NewRegistry(nil, nil)
	key, _, err := pool.NewKey(parentTk, otherTk, 3000, 60, hookAddr)
	if err != nil {
		t.Fatalf("key: %v", err)
	}

	if err := reg.RegisterRoot(key, FeeConfig{}); !errors.Is(err, ErrNotNativePaired) {
		t.Fatalf("expected ErrNotNativePaired, got %v", err)
	}
}

func TestRegisterChild(t *testing.T) {
	reg := NewRegistry(nil, nil)
	root := rootKey(t)
	child := childKey(t)

	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 500, ChildShareBps: 500}); err != nil {
		t.Fatalf("register root: %v", err)
	}
	if err := reg.RegisterChild(child, root, FeeConfig{TotalFeeBps: 1000, ChildShareBps: 750}); err != nil {
		t.Fatalf("register child: %v", err)
	}

	cfg := reg.Lookup(child)
	if !cfg.Enabled || !cfg.HasParent {
		t.Fatalf("unexpected child config: %+v", cfg)
	}
	if cfg.ParentKey != root {
		t.Fatalf("parent key mismatch")
	}
	// parentTk is the shared asset: low slot of the child pair, high slot of
	// the native-paired parent pool.
	if !cfg.SharedIsChildLow || cfg.SharedIsParentLow {
		t.Fatalf("shared slot flags wrong: %+v", cfg)
	}
}

func TestRegisterChildParentMissing(t *testing.T) {
	reg := NewRegistry(nil, nil)
	if err := reg.RegisterChild(childKey(t), rootKey(t), FeeConfig{TotalFeeBps: 100, ChildShareBps: 100}); !errors.Is(err, ErrParentNotRegistered) {
		t.Fatalf("expected ErrParentNotRegistered, got %v", err)
	}
}

func TestRegisterChildSharedAssetChecks(t *testing.T) {
	reg := NewRegistry(nil, nil)
	root := rootKey(t)
	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 500, ChildShareBps: 500}); err != nil {
		t.Fatalf("register root: %v", err)
	}

	// Zero shared assets.
	disjoint, _, err := pool.NewKey(derivTk, otherTk, 3000, 60, hookAddr)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if err := reg.RegisterChild(disjoint, root, FeeConfig{TotalFeeBps: 100, ChildShareBps: 100}); !errors.Is(err, ErrSharedAssetAmbiguous) {
		t.Fatalf("expected ErrSharedAssetAmbiguous for disjoint pair, got %v", err)
	}

	// Both assets shared: same pair at a different fee tier.
	samePair, _, err := pool.NewKey(currency.Native, parentTk, 500, 10, hookAddr)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if err := reg.RegisterChild(samePair, root, FeeConfig{TotalFeeBps: 100, ChildShareBps: 100}); !errors.Is(err, ErrSharedAssetAmbiguous) {
		t.Fatalf("expected ErrSharedAssetAmbiguous for identical pair, got %v", err)
	}
}

func TestRegisterChildRejectsGrandchild(t *testing.T) {
	reg := NewRegistry(nil, nil)
	root := rootKey(t)
	child := childKey(t)

	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 500, ChildShareBps: 500}); err != nil {
		t.Fatalf("register root: %v", err)
	}
	if err := reg.RegisterChild(child, root, FeeConfig{TotalFeeBps: 1000, ChildShareBps: 750}); err != nil {
		t.Fatalf("register child: %v", err)
	}

	grandchild, _, err := pool.NewKey(derivTk, otherTk, 3000, 60, hookAddr)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if err := reg.RegisterChild(grandchild, child, FeeConfig{TotalFeeBps: 100, ChildShareBps: 100}); !errors.Is(err, ErrTransitiveParent) {
		t.Fatalf("expected ErrTransitiveParent, got %v", err)
	}
}

func TestFeeBounds(t *testing.T) {
	reg := NewRegistry(nil, nil)
	root := rootKey(t)

	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 10001, ChildShareBps: 0}); !errors.Is(err, ErrFeeBoundsInvalid) {
		t.Fatalf("expected ErrFeeBoundsInvalid for total > 10000, got %v", err)
	}
	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 1000, ChildShareBps: 1001}); !errors.Is(err, ErrFeeBoundsInvalid) {
		t.Fatalf("expected ErrFeeBoundsInvalid for share > total, got %v", err)
	}
}

func TestLookupUnregisteredIsDisabledSentinel(t *testing.T) {
	reg := NewRegistry(nil, nil)
	cfg := reg.Lookup(rootKey(t))
	if cfg.Enabled || cfg.TotalFeeBps != 0 {
		t.Fatalf("unregistered pool should return the disabled sentinel, got %+v", cfg)
	}
}

func TestReconfigure(t *testing.T) {
	reg := NewRegistry(nil, nil)
	root := rootKey(t)

	if err := reg.Reconfigure(root, FeeConfig{TotalFeeBps: 100, ChildShareBps: 100}); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}

	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 1000, ChildShareBps: 1000}); err != nil {
		t.Fatalf("register root: %v", err)
	}
	if err := reg.Reconfigure(root, FeeConfig{TotalFeeBps: 200, ChildShareBps: 150}); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}

	cfg := reg.Lookup(root)
	if cfg.TotalFeeBps != 200 || cfg.ChildShareBps != 150 {
		t.Fatalf("reconfigure not applied: %+v", cfg)
	}
	if !cfg.Enabled {
		t.Fatalf("reconfigure must not disable the pool")
	}
}

func TestRegisterTwice(t *testing.T) {
	reg := NewRegistry(nil, nil)
	root := rootKey(t)
	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 100, ChildShareBps: 100}); err != nil {
		t.Fatalf("register root: %v", err)
	}
	if err := reg.RegisterRoot(root, FeeConfig{TotalFeeBps: 100, ChildShareBps: 100}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}
