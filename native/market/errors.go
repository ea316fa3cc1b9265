package market

import "errors"

// Every validation failure surfaces as one of these named errors so callers
// can distinguish the rejected precondition. A failed operation leaves no
// state change behind.
var (
	ErrInvalidPrice         = errors.New("market: price must be positive")
	ErrAssetNotFound        = errors.New("market: asset not found")
	ErrAssetDivisible       = errors.New("market: asset decimals must be zero")
	ErrAssetSupply          = errors.New("market: asset supply must be exactly one")
	ErrAssetMintAuthority   = errors.New("market: asset mint authority must be revoked")
	ErrAssetFreezeAuthority = errors.New("market: asset freeze authority must be revoked")
	ErrHoldingNotFound      = errors.New("market: holding account not found")
	ErrSellerHoldingAmount  = errors.New("market: seller holding must contain exactly one unit")
	ErrCustodyAmount        = errors.New("market: custody holding must contain exactly one unit")
	ErrListingExists        = errors.New("market: listing already exists for asset")
	ErrListingNotFound      = errors.New("market: listing not found")
	ErrListingMismatch      = errors.New("market: listing does not match asset")
	ErrSellerMismatch       = errors.New("market: seller does not match listing")
	ErrUnauthorizedCaller   = errors.New("market: caller is not the listing seller")
	ErrSelfTrade            = errors.New("market: seller cannot buy their own listing")
	ErrInsufficientFunds    = errors.New("market: insufficient buyer balance")
	ErrInsufficientReserve  = errors.New("market: insufficient balance for storage reserve")
	ErrBadAuthority         = errors.New("market: listing authority derivation mismatch")
)
