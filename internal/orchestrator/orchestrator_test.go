package orchestrator

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derivpool/internal/currency"
	"derivpool/internal/engine"
	"derivpool/internal/pool"
	"derivpool/internal/sqrtprice"
	"derivpool/internal/topology"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000de910")
	hookAddr = common.HexToAddress("0x00000000000000000000000000000000000ff00c")
	caller   = common.HexToAddress("0x0000000000000000000000000000000000001111")
	parentTk = currency.FromAddress(common.HexToAddress("0x0000000000000000000000000000000000000aaa"))

	testMeta = CollectionMeta{Name: "Fraction Punks", Symbol: "fPUNK", TokenURI: "ipfs://punks/"}
)

func priceOne() *big.Int {
	return new(big.Int).Set(sqrtprice.Q96)
}

type testRig struct {
	orch  *Orchestrator
	mem   *engine.Memory
	vault *MemoryVault
	reg   *topology.Registry
	root  pool.Key
}

func newRig(t *testing.T) *testRig {
	t.Helper()

	mem := engine.NewMemory(nil)
	reg := topology.NewRegistry(nil, nil)
	vault := NewMemoryVault()
	orch := New(deployer, hookAddr, reg, mem, vault, nil, nil)

	root, _, err := pool.NewKey(currency.Native, parentTk, 3000, 60, hookAddr)
	require.NoError(t, err)
	require.NoError(t, orch.RegisterRootPool(root, priceOne(), topology.FeeConfig{TotalFeeBps: 1000, ChildShareBps: 1000}))

	return &testRig{orch: orch, mem: mem, vault: vault, reg: reg, root: root}
}

func createParams(t *testing.T) CreateParams {
	t.Helper()
	salt, err := MineSalt(deployer, parentTk, testMeta, [32]byte{}, 1024)
	require.NoError(t, err)

	return CreateParams{
		Caller:             caller,
		ParentToken:        parentTk,
		Meta:               testMeta,
		Salt:               salt,
		Fee:                3000,
		TickSpacing:        60,
		SqrtPriceX96:       priceOne(),
		TickLower:          -600,
		TickUpper:          600,
		SeedSupply:         big.NewInt(1_000_000),
		ParentContribution: big.NewInt(10_000_000),
		FeeConfig:          topology.FeeConfig{TotalFeeBps: 1000, ChildShareBps: 750},
	}
}

func TestDeriveTokenAddressDeterministic(t *testing.T) {
	salt := [32]byte{1}
	a := DeriveTokenAddress(deployer, salt, testMeta)
	b := DeriveTokenAddress(deployer, salt, testMeta)
	assert.Equal(t, a, b, "same inputs must derive the same address")

	salt[31] = 1
	c := DeriveTokenAddress(deployer, salt, testMeta)
	assert.NotEqual(t, a, c, "salt must move the derived address")

	meta := testMeta
	meta.Name = "Other"
	d := DeriveTokenAddress(deployer, [32]byte{1}, meta)
	assert.NotEqual(t, a, d, "metadata must move the derived address")
}

func TestMineSalt(t *testing.T) {
	salt, err := MineSalt(deployer, parentTk, testMeta, [32]byte{}, 1024)
	require.NoError(t, err)

	derived := currency.FromAddress(DeriveTokenAddress(deployer, salt, testMeta))
	assert.True(t, parentTk.Less(derived), "mined address must sort above the parent")

	_, err = MineSalt(deployer, parentTk, testMeta, [32]byte{}, 0)
	assert.ErrorIs(t, err, ErrSaltExhausted)
}

func TestRegisterRootPoolHookMismatch(t *testing.T) {
	mem := engine.NewMemory(nil)
	orch := New(deployer, hookAddr, topology.NewRegistry(nil, nil), mem, NewMemoryVault(), nil, nil)

	foreign, _, err := pool.NewKey(currency.Native, parentTk, 3000, 60, common.HexToAddress("0xdead"))
	require.NoError(t, err)
	require.ErrorIs(t, orch.RegisterRootPool(foreign, priceOne(), topology.FeeConfig{}), ErrHookMismatch)
}

func TestCreateDerivative(t *testing.T) {
	rig := newRig(t)
	params := createParams(t)

	result, err := rig.orch.CreateDerivative(params)
	require.NoError(t, err)

	// Ordering held, so the derivative is the high slot of the child key.
	assert.Equal(t, parentTk, result.PoolKey.Currency0)
	assert.Equal(t, currency.FromAddress(result.Token), result.PoolKey.Currency1)

	cfg := rig.reg.Lookup(result.PoolKey)
	assert.True(t, cfg.Enabled && cfg.HasParent)
	assert.Equal(t, rig.root, cfg.ParentKey)

	slot, err := rig.mem.Slot0(result.PoolID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.SqrtPriceX96.Cmp(params.SqrtPriceX96))

	liq, err := rig.mem.Liquidity(result.PoolID)
	require.NoError(t, err)
	assert.Equal(t, 0, liq.Cmp(result.Liquidity))
	assert.Positive(t, result.Liquidity.Sign())

	// Leftovers go to the caller when no recipients are named.
	assert.Equal(t, 0, rig.vault.BalanceOf(result.Token, caller).Cmp(result.RefundDerivative))
	assert.Equal(t, 0, rig.orch.RefundBalance(parentTk, caller).Cmp(result.RefundParent))
	assert.True(t, result.RefundParent.Sign() >= 0)
	assert.True(t, result.RefundDerivative.Sign() >= 0)

	token, ok := rig.orch.DerivativeOf(result.Collection)
	require.True(t, ok)
	assert.Equal(t, result.Token, token)
}

func TestCreateDerivativeExplicitRecipients(t *testing.T) {
	rig := newRig(t)

	tokenRecipient := common.HexToAddress("0x0000000000000000000000000000000000003333")
	refundRecipient := common.HexToAddress("0x0000000000000000000000000000000000004444")

	params := createParams(t)
	params.TokenRecipient = tokenRecipient
	params.RefundRecipient = refundRecipient

	result, err := rig.orch.CreateDerivative(params)
	require.NoError(t, err)
	require.Positive(t, result.RefundParent.Sign(), "contribution above the drawn amount leaves a parent refund")

	assert.Equal(t, 0, rig.orch.RefundBalance(parentTk, refundRecipient).Cmp(result.RefundParent),
		"parent leftover credited to the named refund recipient")
	assert.Equal(t, 0, rig.orch.RefundBalance(parentTk, caller).Sign(),
		"caller receives nothing when a refund recipient is named")

	assert.Equal(t, 0, rig.vault.BalanceOf(result.Token, tokenRecipient).Cmp(result.RefundDerivative),
		"derivative leftover minted to the named token recipient")
	assert.Equal(t, 0, rig.vault.BalanceOf(result.Token, caller).Sign())
}

func TestCreateDerivativeParentMissing(t *testing.T) {
	rig := newRig(t)
	params := createParams(t)
	params.ParentToken = currency.FromAddress(common.HexToAddress("0x0000000000000000000000000000000000000ccc"))

	_, err := rig.orch.CreateDerivative(params)
	require.ErrorIs(t, err, ErrParentHasNoPool)
}

func TestCreateDerivativeOrderingViolation(t *testing.T) {
	mem := engine.NewMemory(nil)
	reg := topology.NewRegistry(nil, nil)
	orch := New(deployer, hookAddr, reg, mem, NewMemoryVault(), nil, nil)

	// A parent at the top of the address space: every derived address sorts
	// below it.
	highParent := currency.FromAddress(common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"))
	root, _, err := pool.NewKey(currency.Native, highParent, 3000, 60, hookAddr)
	require.NoError(t, err)
	require.NoError(t, orch.RegisterRootPool(root, priceOne(), topology.FeeConfig{TotalFeeBps: 1000, ChildShareBps: 1000}))

	params := createParams(t)
	params.ParentToken = highParent

	_, err = orch.CreateDerivative(params)
	require.ErrorIs(t, err, ErrOrderingViolation)
}

func TestCreateDerivativeValidation(t *testing.T) {
	rig := newRig(t)

	p := createParams(t)
	p.SqrtPriceX96 = nil
	_, err := rig.orch.CreateDerivative(p)
	assert.ErrorIs(t, err, ErrInvalidCreateParams)

	p = createParams(t)
	p.TickLower, p.TickUpper = 600, -600
	_, err = rig.orch.CreateDerivative(p)
	assert.ErrorIs(t, err, ErrInvalidCreateParams)

	p = createParams(t)
	p.SeedSupply = new(big.Int)
	_, err = rig.orch.CreateDerivative(p)
	assert.ErrorIs(t, err, ErrInvalidCreateParams)
}

func TestCreateDerivativeInsufficientContribution(t *testing.T) {
	rig := newRig(t)
	params := createParams(t)
	params.ParentContribution = big.NewInt(1)

	_, err := rig.orch.CreateDerivative(params)
	require.ErrorIs(t, err, ErrInsufficientContribution)
}
