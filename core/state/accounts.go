package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/core/types"
)

// ErrInsufficientBalance is returned when a debit exceeds the available
// balance.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

func accountStorageKey(addr []byte) []byte {
	return storageKey(accountPrefix, addr)
}

// GetAccount loads the account for addr, returning a zeroed account when none
// has been stored yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	data, ok, err := m.get(accountStorageKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("state: corrupt account record: %w", err)
	}
	account := &types.Account{Nonce: stored.Nonce, Balance: big.NewInt(0)}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		if account.Balance.Sign() < 0 {
			return fmt.Errorf("state: negative account balance")
		}
		balance = new(big.Int).Set(account.Balance)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.db.Put(accountStorageKey(addr), encoded)
}

// MustSubBalance debits amt from balance in place and returns a rollback
// closure restoring the previous value.
func MustSubBalance(balance, amt *big.Int) (func(), error) {
	if balance == nil || amt == nil {
		return nil, fmt.Errorf("state: nil balance operand")
	}
	if amt.Sign() < 0 {
		return nil, fmt.Errorf("state: negative debit amount")
	}
	if balance.Cmp(amt) < 0 {
		return nil, ErrInsufficientBalance
	}
	prev := new(big.Int).Set(balance)
	balance.Sub(balance, amt)
	return func() { balance.Set(prev) }, nil
}

// MustAddBalance credits amt to balance in place and returns a rollback
// closure restoring the previous value.
func MustAddBalance(balance, amt *big.Int) (func(), error) {
	if balance == nil || amt == nil {
		return nil, fmt.Errorf("state: nil balance operand")
	}
	if amt.Sign() < 0 {
		return nil, fmt.Errorf("state: negative credit amount")
	}
	prev := new(big.Int).Set(balance)
	balance.Add(balance, amt)
	return func() { balance.Set(prev) }, nil
}
