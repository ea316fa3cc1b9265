package rpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"nftmarket/crypto"
	"nftmarket/native/market"
)

type listingJSON struct {
	Address string `json:"address"`
	Seller  string `json:"seller"`
	Asset   string `json:"asset"`
	Price   uint64 `json:"price"`
	Bump    uint8  `json:"bump"`
}

func toListingJSON(l *market.Listing) *listingJSON {
	if l == nil {
		return nil
	}
	addr := l.Address()
	return &listingJSON{
		Address: crypto.NewAddress(crypto.MarketPrefix, addr[:]).String(),
		Seller:  crypto.NewAddress(crypto.MarketPrefix, l.Seller[:]).String(),
		Asset:   hex.EncodeToString(l.AssetID[:]),
		Price:   l.Price,
		Bump:    l.Bump,
	}
}

func parseBech32Address(value string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAssetID(value string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid asset id: %w", err)
	}
	if len(raw) != 32 {
		return [32]byte{}, fmt.Errorf("asset id must be 32 bytes, got %d", len(raw))
	}
	var id [32]byte
	copy(id[:], raw)
	return id, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.MarketPrefix, addr[:]).String()
}
