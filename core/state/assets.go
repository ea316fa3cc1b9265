package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/native/market"
)

type storedAsset struct {
	ID              [32]byte
	Decimals        uint8
	Supply          uint64
	MintAuthority   []byte
	FreezeAuthority []byte
}

func assetStorageKey(id [32]byte) []byte {
	return storageKey(assetPrefix, id[:])
}

func newStoredAsset(a *market.Asset) *storedAsset {
	if a == nil {
		return nil
	}
	record := &storedAsset{ID: a.ID, Decimals: a.Decimals, Supply: a.Supply}
	if a.MintAuthority != nil {
		record.MintAuthority = append([]byte(nil), a.MintAuthority[:]...)
	}
	if a.FreezeAuthority != nil {
		record.FreezeAuthority = append([]byte(nil), a.FreezeAuthority[:]...)
	}
	return record
}

func (s *storedAsset) toAsset() (*market.Asset, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil asset record")
	}
	asset := &market.Asset{ID: s.ID, Decimals: s.Decimals, Supply: s.Supply}
	if len(s.MintAuthority) > 0 {
		if len(s.MintAuthority) != 20 {
			return nil, fmt.Errorf("state: malformed mint authority")
		}
		var authority [20]byte
		copy(authority[:], s.MintAuthority)
		asset.MintAuthority = &authority
	}
	if len(s.FreezeAuthority) > 0 {
		if len(s.FreezeAuthority) != 20 {
			return nil, fmt.Errorf("state: malformed freeze authority")
		}
		var authority [20]byte
		copy(authority[:], s.FreezeAuthority)
		asset.FreezeAuthority = &authority
	}
	return asset, nil
}

// AssetPut persists the asset metadata.
func (m *Manager) AssetPut(a *market.Asset) error {
	if a == nil {
		return fmt.Errorf("state: nil asset")
	}
	encoded, err := rlp.EncodeToBytes(newStoredAsset(a))
	if err != nil {
		return err
	}
	return m.db.Put(assetStorageKey(a.ID), encoded)
}

// AssetGet loads the asset metadata for id.
func (m *Manager) AssetGet(id [32]byte) (*market.Asset, bool) {
	data, ok, err := m.get(assetStorageKey(id))
	if err != nil || !ok {
		return nil, false
	}
	stored := new(storedAsset)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	asset, err := stored.toAsset()
	if err != nil {
		return nil, false
	}
	return asset, true
}
