package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestAssetCloneIsDeep(t *testing.T) {
	authority := newTestAddress(0x0A)
	asset := &Asset{ID: newTestAsset(0x01), Supply: 1, MintAuthority: &authority}
	clone := asset.Clone()

	authority[0] = 0xFF
	if clone.MintAuthority[0] == 0xFF {
		t.Fatal("clone shares the mint authority pointer")
	}
	if (*Asset)(nil).Clone() != nil {
		t.Fatal("nil asset must clone to nil")
	}
}

func TestAssetSingleEdition(t *testing.T) {
	authority := newTestAddress(0x0A)
	base := Asset{ID: newTestAsset(0x01), Decimals: 0, Supply: 1}
	if !base.SingleEdition() {
		t.Fatal("plain single-supply asset must qualify")
	}

	divisible := base
	divisible.Decimals = 6
	multi := base
	multi.Supply = 10
	minted := base
	minted.MintAuthority = &authority
	frozen := base
	frozen.FreezeAuthority = &authority
	for _, asset := range []Asset{divisible, multi, minted, frozen} {
		if asset.SingleEdition() {
			t.Fatalf("asset %+v must not qualify as single edition", asset)
		}
	}
	if (*Asset)(nil).SingleEdition() {
		t.Fatal("nil asset must not qualify")
	}
}

func TestHoldingCloneNormalizesReserve(t *testing.T) {
	holding := &Holding{Owner: newTestAddress(0x01), Asset: newTestAsset(0x02), Amount: 1}
	clone := holding.Clone()
	if clone.Reserve == nil || clone.Reserve.Sign() != 0 {
		t.Fatalf("clone reserve = %v, want 0", clone.Reserve)
	}

	holding.Reserve = big.NewInt(500)
	clone = holding.Clone()
	clone.Reserve.SetInt64(9)
	if holding.Reserve.Cmp(big.NewInt(500)) != 0 {
		t.Fatal("clone shares the reserve pointer")
	}
}

func TestSanitizeListing(t *testing.T) {
	assetID := newTestAsset(0x33)
	_, bump := DeriveListingAddress(assetID)
	valid := &Listing{Seller: newTestAddress(0x01), AssetID: assetID, Price: 250, Bump: bump}

	sanitized, err := SanitizeListing(valid)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized == valid {
		t.Fatal("sanitize must return a copy")
	}
	if sanitized.Address() == ([20]byte{}) {
		t.Fatal("sanitized listing must derive a non-zero address")
	}

	free := valid.Clone()
	free.Price = 0
	if _, err := SanitizeListing(free); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("zero price = %v, want %v", err, ErrInvalidPrice)
	}

	orphan := valid.Clone()
	orphan.Seller = [20]byte{}
	if _, err := SanitizeListing(orphan); err == nil {
		t.Fatal("unset seller must be rejected")
	}

	forged := valid.Clone()
	forged.Bump = bump - 1
	if _, err := SanitizeListing(forged); !errors.Is(err, ErrBadAuthority) {
		t.Fatalf("forged witness = %v, want %v", err, ErrBadAuthority)
	}

	if _, err := SanitizeListing(nil); err == nil {
		t.Fatal("nil listing must be rejected")
	}
}
