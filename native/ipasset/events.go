package ipasset

import (
	"encoding/hex"
	"strconv"

	"ipchain/core/types"
)

const (
	EventTypeAssetRegistered      = "ipasset.registered"
	EventTypeBeneficiariesUpdated = "ipasset.beneficiaries_updated"
)

// NewRegisteredEvent returns the canonical event payload for a newly
// registered asset.
func NewRegisteredEvent(a *IPAsset) *types.Event {
	return newAssetEvent(EventTypeAssetRegistered, a)
}

// NewBeneficiariesUpdatedEvent returns the canonical event payload emitted
// when the royalty table is replaced.
func NewBeneficiariesUpdatedEvent(a *IPAsset) *types.Event {
	return newAssetEvent(EventTypeBeneficiariesUpdated, a)
}

func newAssetEvent(eventType string, a *IPAsset) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeAsset(a)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["assetId"] = hex.EncodeToString(sanitized.ID[:])
	attrs["creator"] = hex.EncodeToString(sanitized.Creator[:])
	attrs["totalShares"] = sanitized.TotalShares.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	attrs["beneficiaries"] = strconv.Itoa(len(sanitized.Beneficiaries))
	for i, entry := range sanitized.Beneficiaries {
		prefix := "beneficiary." + strconv.Itoa(i) + "."
		attrs[prefix+"account"] = hex.EncodeToString(entry.Account[:])
		attrs[prefix+"bps"] = strconv.FormatUint(uint64(entry.BasisPoints), 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
