package market

import (
	"fmt"
	"math/big"
)

// Asset captures the metadata of a token mint tracked by the asset ledger. A
// single-edition collectible has zero decimals, a supply of exactly one and no
// remaining mint or freeze authority.
type Asset struct {
	ID              [32]byte
	Decimals        uint8
	Supply          uint64
	MintAuthority   *[20]byte
	FreezeAuthority *[20]byte
}

// Clone returns a deep copy of the asset metadata.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	if a.MintAuthority != nil {
		authority := *a.MintAuthority
		clone.MintAuthority = &authority
	}
	if a.FreezeAuthority != nil {
		authority := *a.FreezeAuthority
		clone.FreezeAuthority = &authority
	}
	return &clone
}

// SingleEdition reports whether the asset is a genuine single-edition
// collectible that cannot be diluted or frozen after listing.
func (a *Asset) SingleEdition() bool {
	if a == nil {
		return false
	}
	return a.Decimals == 0 && a.Supply == 1 && a.MintAuthority == nil && a.FreezeAuthority == nil
}

// Holding is a per-(owner, asset) token account. Reserve is the native-value
// storage deposit charged when the holding was opened; it is refunded when the
// emptied holding is closed.
type Holding struct {
	Owner   [20]byte
	Asset   [32]byte
	Amount  uint64
	Reserve *big.Int
}

// Clone returns a deep copy of the holding with a non-nil reserve.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return nil
	}
	clone := *h
	if h.Reserve != nil {
		clone.Reserve = new(big.Int).Set(h.Reserve)
	} else {
		clone.Reserve = big.NewInt(0)
	}
	return &clone
}

// Listing is the sole persistent record of an active sale: asset AssetID is
// offered by Seller at Price native units. The record itself acts as the
// custody authority for the escrowed unit; Bump is the derivation witness that
// lets the record's address be re-derived from the asset identifier.
type Listing struct {
	Seller  [20]byte
	AssetID [32]byte
	Price   uint64
	Bump    uint8
}

// Clone returns a copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Address returns the deterministic record address derived from the stored
// witness.
func (l *Listing) Address() [20]byte {
	if l == nil {
		return [20]byte{}
	}
	return listingCandidate(l.AssetID, l.Bump)
}

// SanitizeListing validates the supplied listing and returns a clone. The
// price must be positive, the seller populated and the witness must re-derive
// the canonical record address for the asset.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	if clone.Price == 0 {
		return nil, ErrInvalidPrice
	}
	if clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("market: listing seller not set")
	}
	if _, bump := DeriveListingAddress(clone.AssetID); bump != clone.Bump {
		return nil, ErrBadAuthority
	}
	return clone, nil
}
