package orchestrator

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"derivpool/internal/currency"
)

var ErrSaltExhausted = errors.New("no salt found within the attempt limit")

// create2Prefix distinguishes the derivation preimage from ordinary hashes.
const create2Prefix = 0xff

// initCodeHash hashes the constructor payload so the derived address commits
// to the collection metadata.
func initCodeHash(meta CollectionMeta) common.Hash {
	return crypto.Keccak256Hash(
		[]byte(meta.Name),
		[]byte{0x00},
		[]byte(meta.Symbol),
		[]byte{0x00},
		[]byte(meta.TokenURI),
	)
}

// DeriveTokenAddress computes the derivative token address from the deployer
// identity, the caller's salt and the collection metadata. Pure content
// addressing: the same inputs derive the same address offline and online.
func DeriveTokenAddress(deployer common.Address, salt [32]byte, meta CollectionMeta) common.Address {
	payload := initCodeHash(meta)
	digest := crypto.Keccak256(
		[]byte{create2Prefix},
		deployer.Bytes(),
		salt[:],
		payload.Bytes(),
	)
	return common.BytesToAddress(digest[12:])
}

// DeriveCollectionAddress computes the collection address paired with a
// derivative token.
func DeriveCollectionAddress(token common.Address, deployer common.Address) common.Address {
	digest := crypto.Keccak256(
		[]byte{create2Prefix},
		deployer.Bytes(),
		token.Bytes(),
	)
	return common.BytesToAddress(digest[12:])
}

// MineSalt searches for a salt whose derived token address sorts above the
// parent token, trying at most limit candidates from the given seed.
func MineSalt(deployer common.Address, parent currency.Currency, meta CollectionMeta, seed [32]byte, limit int) ([32]byte, error) {
	salt := seed
	for i := 0; i < limit; i++ {
		binary.BigEndian.PutUint64(salt[24:], binary.BigEndian.Uint64(seed[24:])+uint64(i))
		derived := DeriveTokenAddress(deployer, salt, meta)
		if parent.Less(currency.FromAddress(derived)) {
			return salt, nil
		}
	}
	return [32]byte{}, ErrSaltExhausted
}
