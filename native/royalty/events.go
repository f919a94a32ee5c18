package royalty

import (
	"encoding/hex"
	"strconv"

	"ipchain/core/types"
)

const (
	EventTypeDistributed = "royalty.distributed"
)

// NewDistributedEvent returns the canonical event payload for an executed
// distribution. Every allocation is individually indexed so auditors can
// reconstruct the full payout from event attributes alone.
func NewDistributedEvent(d *Distribution) *types.Event {
	attrs := make(map[string]string)
	if d == nil {
		return &types.Event{Type: EventTypeDistributed, Attributes: attrs}
	}
	sanitized := d.Clone()
	attrs["payment"] = sanitized.Payment.String()
	attrs["allocations"] = strconv.Itoa(len(sanitized.Allocations))
	for i, alloc := range sanitized.Allocations {
		prefix := "allocation." + strconv.Itoa(i) + "."
		attrs[prefix+"account"] = hex.EncodeToString(alloc.Account[:])
		attrs[prefix+"amount"] = alloc.Amount.String()
	}
	return &types.Event{Type: EventTypeDistributed, Attributes: attrs}
}
