package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/market"
)

type storedListing struct {
	Seller  [20]byte
	Asset   [32]byte
	Price   uint64
	Bump    uint8
	Reserve *big.Int
}

func listingStorageKey(addr [20]byte) []byte {
	return storageKey(listingPrefix, addr[:])
}

// ListingGet loads the listing record stored at the derived address.
func (m *Manager) ListingGet(addr [20]byte) (*market.Listing, bool) {
	data, ok, err := m.get(listingStorageKey(addr))
	if err != nil || !ok {
		return nil, false
	}
	stored := new(storedListing)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	return &market.Listing{Seller: stored.Seller, AssetID: stored.Asset, Price: stored.Price, Bump: stored.Bump}, true
}

// ListingCreate allocates the listing record at its derived address, charging
// the record storage reserve to payer. Creation fails when the address is
// already occupied, which serialises concurrent listing attempts per asset.
func (m *Manager) ListingCreate(l *market.Listing, payer [20]byte) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	addr := sanitized.Address()
	key := listingStorageKey(addr)
	if _, ok, err := m.get(key); err != nil {
		return err
	} else if ok {
		return market.ErrListingExists
	}
	payerAcc, err := m.GetAccount(payer[:])
	if err != nil {
		return err
	}
	rollback, err := MustSubBalance(payerAcc.Balance, listingReserveAmount)
	if err != nil {
		return err
	}
	record := &storedListing{
		Seller:  sanitized.Seller,
		Asset:   sanitized.AssetID,
		Price:   sanitized.Price,
		Bump:    sanitized.Bump,
		Reserve: m.ListingReserve(),
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		rollback()
		return err
	}
	if err := m.db.Put(key, encoded); err != nil {
		rollback()
		return err
	}
	if err := m.PutAccount(payer[:], payerAcc); err != nil {
		_ = m.db.Delete(key)
		return err
	}
	return nil
}

// ListingClose destroys the listing record at addr and refunds its storage
// reserve to refundTo.
func (m *Manager) ListingClose(addr [20]byte, refundTo [20]byte) error {
	data, ok, err := m.get(listingStorageKey(addr))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state: listing record not found")
	}
	stored := new(storedListing)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return fmt.Errorf("state: corrupt listing record: %w", err)
	}
	reserve := big.NewInt(0)
	if stored.Reserve != nil {
		reserve = new(big.Int).Set(stored.Reserve)
	}
	refundAcc, err := m.GetAccount(refundTo[:])
	if err != nil {
		return err
	}
	if _, err := MustAddBalance(refundAcc.Balance, reserve); err != nil {
		return err
	}
	if err := m.PutAccount(refundTo[:], refundAcc); err != nil {
		return err
	}
	return m.db.Delete(listingStorageKey(addr))
}
