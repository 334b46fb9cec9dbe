package orchestrator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrPairExists       = errors.New("pair already deployed")
	ErrUnknownToken     = errors.New("token not deployed by this vault")
	ErrInsufficientBurn = errors.New("redeem exceeds holder balance")
)

// MemoryVault is the in-process Vault used by tests and the CLI. Deployment
// follows the same derivation as DeriveTokenAddress, so orchestrated
// creations always match their predicted addresses.
type MemoryVault struct {
	mu       sync.Mutex
	tokens   map[common.Address]common.Address
	balances map[common.Address]map[common.Address]*big.Int
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		tokens:   make(map[common.Address]common.Address),
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (v *MemoryVault) Deploy(deployer common.Address, salt [32]byte, meta CollectionMeta) (common.Address, common.Address, error) {
	token := DeriveTokenAddress(deployer, salt, meta)
	collection := DeriveCollectionAddress(token, deployer)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.balances[token]; ok {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %s", ErrPairExists, token.Hex())
	}
	v.balances[token] = make(map[common.Address]*big.Int)
	v.tokens[collection] = token
	return token, collection, nil
}

func (v *MemoryVault) Mint(token, to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	holders, ok := v.balances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	balance, ok := holders[to]
	if !ok {
		balance = new(big.Int)
		holders[to] = balance
	}
	balance.Add(balance, amount)
	return nil
}

func (v *MemoryVault) Redeem(token, from common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	holders, ok := v.balances[token]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	balance, ok := holders[from]
	if !ok || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientBurn, from.Hex())
	}
	balance.Sub(balance, amount)
	return nil
}

func (v *MemoryVault) Token(collection common.Address) (common.Address, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	token, ok := v.tokens[collection]
	return token, ok
}

// BalanceOf reports a holder's derivative token balance.
func (v *MemoryVault) BalanceOf(token, holder common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	holders, ok := v.balances[token]
	if !ok {
		return new(big.Int)
	}
	balance, ok := holders[holder]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}
