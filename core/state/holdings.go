package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/market"
)

// Storage reserves charged when ledger records are allocated and refunded when
// they are closed. Denominated in the smallest native unit.
var (
	holdingReserveAmount = big.NewInt(2_000_000)
	listingReserveAmount = big.NewInt(1_500_000)
)

type storedHolding struct {
	Owner   [20]byte
	Asset   [32]byte
	Amount  uint64
	Reserve *big.Int
}

func holdingStorageKey(owner [20]byte, asset [32]byte) []byte {
	raw := make([]byte, len(owner)+len(asset))
	copy(raw, owner[:])
	copy(raw[len(owner):], asset[:])
	return storageKey(holdingPrefix, raw)
}

// HoldingReserve returns the deposit required to open a holding account.
func (m *Manager) HoldingReserve() *big.Int {
	return new(big.Int).Set(holdingReserveAmount)
}

// ListingReserve returns the deposit required to allocate a listing record.
func (m *Manager) ListingReserve() *big.Int {
	return new(big.Int).Set(listingReserveAmount)
}

// HoldingGet loads the holding account for (owner, asset).
func (m *Manager) HoldingGet(owner [20]byte, asset [32]byte) (*market.Holding, bool) {
	data, ok, err := m.get(holdingStorageKey(owner, asset))
	if err != nil || !ok {
		return nil, false
	}
	stored := new(storedHolding)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	holding := &market.Holding{Owner: stored.Owner, Asset: stored.Asset, Amount: stored.Amount, Reserve: big.NewInt(0)}
	if stored.Reserve != nil {
		holding.Reserve = new(big.Int).Set(stored.Reserve)
	}
	return holding, true
}

// HoldingPut persists the holding account.
func (m *Manager) HoldingPut(h *market.Holding) error {
	if h == nil {
		return fmt.Errorf("state: nil holding")
	}
	reserve := big.NewInt(0)
	if h.Reserve != nil {
		reserve = new(big.Int).Set(h.Reserve)
	}
	encoded, err := rlp.EncodeToBytes(&storedHolding{Owner: h.Owner, Asset: h.Asset, Amount: h.Amount, Reserve: reserve})
	if err != nil {
		return err
	}
	return m.db.Put(holdingStorageKey(h.Owner, h.Asset), encoded)
}

// HoldingOpen returns the existing holding for (owner, asset) or allocates an
// empty one, charging the storage reserve to payer. Returning a pre-existing
// holding keeps creation idempotent and defuses pre-created accounts.
func (m *Manager) HoldingOpen(owner [20]byte, asset [32]byte, payer [20]byte) (*market.Holding, error) {
	if existing, ok := m.HoldingGet(owner, asset); ok {
		return existing, nil
	}
	payerAcc, err := m.GetAccount(payer[:])
	if err != nil {
		return nil, err
	}
	rollback, err := MustSubBalance(payerAcc.Balance, holdingReserveAmount)
	if err != nil {
		return nil, err
	}
	holding := &market.Holding{Owner: owner, Asset: asset, Amount: 0, Reserve: m.HoldingReserve()}
	if err := m.HoldingPut(holding); err != nil {
		rollback()
		return nil, err
	}
	if err := m.PutAccount(payer[:], payerAcc); err != nil {
		_ = m.db.Delete(holdingStorageKey(owner, asset))
		return nil, err
	}
	return holding, nil
}

// HoldingClose removes an emptied holding account and refunds its storage
// reserve to refundTo.
func (m *Manager) HoldingClose(owner [20]byte, asset [32]byte, refundTo [20]byte) error {
	holding, ok := m.HoldingGet(owner, asset)
	if !ok {
		return fmt.Errorf("state: holding not found")
	}
	if holding.Amount != 0 {
		return fmt.Errorf("state: cannot close non-empty holding")
	}
	refundAcc, err := m.GetAccount(refundTo[:])
	if err != nil {
		return err
	}
	if _, err := MustAddBalance(refundAcc.Balance, holding.Reserve); err != nil {
		return err
	}
	if err := m.PutAccount(refundTo[:], refundAcc); err != nil {
		return err
	}
	return m.db.Delete(holdingStorageKey(owner, asset))
}
