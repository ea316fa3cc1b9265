package market

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeListed    = "market.listed"
	EventTypeCancelled = "market.cancelled"
	EventTypeSold      = "market.sold"
)

// NewListedEvent returns the canonical event payload emitted when an asset is
// placed in escrow.
func NewListedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeListed, l, nil) }

// NewCancelledEvent returns the canonical event payload emitted when a seller
// reclaims a listed asset.
func NewCancelledEvent(l *Listing) *types.Event { return newListingEvent(EventTypeCancelled, l, nil) }

// NewSoldEvent returns the canonical event payload emitted when a listing is
// bought.
func NewSoldEvent(l *Listing, buyer [20]byte) *types.Event {
	return newListingEvent(EventTypeSold, l, &buyer)
}

func newListingEvent(eventType string, l *Listing, buyer *[20]byte) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	addr := l.Address()
	attrs["address"] = hex.EncodeToString(addr[:])
	attrs["seller"] = hex.EncodeToString(l.Seller[:])
	attrs["asset"] = hex.EncodeToString(l.AssetID[:])
	attrs["price"] = strconv.FormatUint(l.Price, 10)
	attrs["bump"] = strconv.FormatUint(uint64(l.Bump), 10)
	if buyer != nil {
		attrs["buyer"] = hex.EncodeToString(buyer[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
