package marketplace

import (
	"encoding/hex"
	"strconv"

	"ipchain/core/types"
)

const (
	EventTypeListed      = "ipmarket.listed"
	EventTypeCancelled   = "ipmarket.cancelled"
	EventTypeInvalidated = "ipmarket.invalidated"
	EventTypeSettled     = "ipmarket.settled"
)

// NewListedEvent returns the canonical event payload for a new listing.
func NewListedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListed, l)
}

// NewCancelledEvent returns the canonical event payload for a seller
// cancellation.
func NewCancelledEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeCancelled, l)
}

// NewInvalidatedEvent returns the canonical event payload emitted when a
// stale offer is retired.
func NewInvalidatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeInvalidated, l)
}

// NewSettledEvent returns the canonical event payload for a completed
// purchase, including every royalty allocation for audit indexing.
func NewSettledEvent(l *Listing, record *SettlementRecord) *types.Event {
	evt := newListingEvent(EventTypeSettled, l)
	if record == nil {
		return evt
	}
	sanitized := record.Clone()
	evt.Attributes["buyer"] = hex.EncodeToString(sanitized.Buyer[:])
	evt.Attributes["shares"] = sanitized.Shares.String()
	evt.Attributes["totalPaid"] = sanitized.TotalPaid.String()
	evt.Attributes["settledAt"] = strconv.FormatInt(sanitized.Timestamp, 10)
	evt.Attributes["allocations"] = strconv.Itoa(len(sanitized.Allocations))
	for i, alloc := range sanitized.Allocations {
		prefix := "allocation." + strconv.Itoa(i) + "."
		evt.Attributes[prefix+"account"] = hex.EncodeToString(alloc.Account[:])
		evt.Attributes[prefix+"amount"] = alloc.Amount.String()
	}
	return evt
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listingId"] = hex.EncodeToString(sanitized.ID[:])
	attrs["assetId"] = hex.EncodeToString(sanitized.AssetID[:])
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["price"] = sanitized.Price.String()
	attrs["sharesOffered"] = sanitized.SharesOffered.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	attrs["status"] = sanitized.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
