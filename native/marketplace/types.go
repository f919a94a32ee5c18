package marketplace

import (
	"fmt"
	"math/big"

	"ipchain/native/royalty"
)

// ListingStatus represents the lifecycle states of a share listing. Active is
// the only non-terminal state.
type ListingStatus uint8

const (
	ListingActive ListingStatus = iota
	ListingSold
	ListingCancelled
	ListingInvalidated
)

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingSold, ListingCancelled, ListingInvalidated:
		return true
	default:
		return false
	}
}

// Terminal reports whether the listing can no longer transition.
func (s ListingStatus) Terminal() bool {
	return s != ListingActive
}

func (s ListingStatus) String() string {
	switch s {
	case ListingActive:
		return "active"
	case ListingSold:
		return "sold"
	case ListingCancelled:
		return "cancelled"
	case ListingInvalidated:
		return "invalidated"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Listing is a seller's open offer to sell a fixed quantity of ownership
// shares at a fixed price. The identifier is the keccak256 hash of the asset
// identifier and the seller, which enforces at most one live listing per
// (asset, seller) pair. SharesOffered is re-validated against the live seller
// balance at purchase time, never trusted from the record.
type Listing struct {
	ID            [32]byte
	AssetID       [32]byte
	Seller        [20]byte
	Price         *big.Int
	SharesOffered *big.Int
	CreatedAt     int64
	Status        ListingStatus
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if l.SharesOffered != nil {
		clone.SharesOffered = new(big.Int).Set(l.SharesOffered)
	} else {
		clone.SharesOffered = big.NewInt(0)
	}
	return &clone
}

// SanitizeListing validates a stored listing and returns a normalised clone.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("listing price must be positive")
	}
	if clone.SharesOffered.Sign() <= 0 {
		return nil, fmt.Errorf("listing shares must be positive")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid listing status: %d", clone.Status)
	}
	return clone, nil
}

// SettlementRecord is the append-only audit entry for one successful
// purchase: who bought, what was paid, and exactly how the proceeds were
// distributed. Records are never mutated or deleted once appended.
type SettlementRecord struct {
	ListingID   [32]byte
	AssetID     [32]byte
	Buyer       [20]byte
	Seller      [20]byte
	Shares      *big.Int
	TotalPaid   *big.Int
	Allocations []royalty.Allocation
	Timestamp   int64
}

// Clone returns a deep copy of the settlement record.
func (r *SettlementRecord) Clone() *SettlementRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Shares != nil {
		clone.Shares = new(big.Int).Set(r.Shares)
	} else {
		clone.Shares = big.NewInt(0)
	}
	if r.TotalPaid != nil {
		clone.TotalPaid = new(big.Int).Set(r.TotalPaid)
	} else {
		clone.TotalPaid = big.NewInt(0)
	}
	if len(r.Allocations) > 0 {
		clone.Allocations = make([]royalty.Allocation, len(r.Allocations))
		for i, alloc := range r.Allocations {
			clone.Allocations[i] = royalty.Allocation{Account: alloc.Account, Amount: big.NewInt(0)}
			if alloc.Amount != nil {
				clone.Allocations[i].Amount = new(big.Int).Set(alloc.Amount)
			}
		}
	}
	return &clone
}
