package state

import (
	"bytes"
	"math/big"

	"ipchain/native/marketplace"
	"ipchain/native/royalty"
)

type storedListing struct {
	ID            [32]byte
	AssetID       [32]byte
	Seller        [20]byte
	Price         *big.Int
	SharesOffered *big.Int
	CreatedAt     uint64
	Status        uint8
}

type storedAllocation struct {
	Account [20]byte
	Amount  *big.Int
}

type storedSettlement struct {
	ListingID   [32]byte
	AssetID     [32]byte
	Buyer       [20]byte
	Seller      [20]byte
	Shares      *big.Int
	TotalPaid   *big.Int
	Allocations []storedAllocation
	Timestamp   uint64
}

// ListingPut persists the listing record.
func (m *Manager) ListingPut(listing *marketplace.Listing) error {
	sanitized, err := marketplace.SanitizeListing(listing)
	if err != nil {
		return err
	}
	return m.KVPut(prefixedKey(listingPrefix, sanitized.ID[:]), &storedListing{
		ID:            sanitized.ID,
		AssetID:       sanitized.AssetID,
		Seller:        sanitized.Seller,
		Price:         sanitized.Price,
		SharesOffered: sanitized.SharesOffered,
		CreatedAt:     uint64(sanitized.CreatedAt),
		Status:        uint8(sanitized.Status),
	})
}

// ListingGet loads the listing record for the identifier.
func (m *Manager) ListingGet(id [32]byte) (*marketplace.Listing, bool, error) {
	var stored storedListing
	ok, err := m.KVGet(prefixedKey(listingPrefix, id[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &marketplace.Listing{
		ID:            stored.ID,
		AssetID:       stored.AssetID,
		Seller:        stored.Seller,
		Price:         stored.Price,
		SharesOffered: stored.SharesOffered,
		CreatedAt:     int64(stored.CreatedAt),
		Status:        marketplace.ListingStatus(stored.Status),
	}, true, nil
}

// ListingIndexAsset records the listing under the asset's index so active
// offers can be discovered per asset. Duplicate entries are ignored.
func (m *Manager) ListingIndexAsset(assetID [32]byte, listingID [32]byte) error {
	key := prefixedKey(listingIndexPrefix, assetID[:])
	var index [][]byte
	if _, err := m.KVGet(key, &index); err != nil {
		return err
	}
	for _, existing := range index {
		if bytes.Equal(existing, listingID[:]) {
			return nil
		}
	}
	index = append(index, append([]byte(nil), listingID[:]...))
	return m.KVPut(key, index)
}

// AssetHasActiveListing reports whether any active listing references the
// asset. The registry consults this before allowing beneficiary amendments.
func (m *Manager) AssetHasActiveListing(assetID [32]byte) (bool, error) {
	var index [][]byte
	if _, err := m.KVGet(prefixedKey(listingIndexPrefix, assetID[:]), &index); err != nil {
		return false, err
	}
	for _, raw := range index {
		var listingID [32]byte
		copy(listingID[:], raw)
		listing, ok, err := m.ListingGet(listingID)
		if err != nil {
			return false, err
		}
		if ok && listing.Status == marketplace.ListingActive {
			return true, nil
		}
	}
	return false, nil
}

// SettlementAppend appends the record to the listing's settlement journal.
// The journal is append-only; records are never rewritten.
func (m *Manager) SettlementAppend(record *marketplace.SettlementRecord) error {
	if record == nil {
		return nil
	}
	sanitized := record.Clone()
	key := prefixedKey(settlementPrefix, sanitized.ListingID[:])
	var journal []storedSettlement
	if _, err := m.KVGet(key, &journal); err != nil {
		return err
	}
	stored := storedSettlement{
		ListingID: sanitized.ListingID,
		AssetID:   sanitized.AssetID,
		Buyer:     sanitized.Buyer,
		Seller:    sanitized.Seller,
		Shares:    sanitized.Shares,
		TotalPaid: sanitized.TotalPaid,
		Timestamp: uint64(sanitized.Timestamp),
	}
	stored.Allocations = make([]storedAllocation, len(sanitized.Allocations))
	for i, alloc := range sanitized.Allocations {
		stored.Allocations[i] = storedAllocation{Account: alloc.Account, Amount: alloc.Amount}
	}
	journal = append(journal, stored)
	return m.KVPut(key, journal)
}

// Settlements returns the settlement journal recorded for the listing in
// append order.
func (m *Manager) Settlements(listingID [32]byte) ([]*marketplace.SettlementRecord, error) {
	var journal []storedSettlement
	if _, err := m.KVGet(prefixedKey(settlementPrefix, listingID[:]), &journal); err != nil {
		return nil, err
	}
	records := make([]*marketplace.SettlementRecord, len(journal))
	for i, stored := range journal {
		record := &marketplace.SettlementRecord{
			ListingID: stored.ListingID,
			AssetID:   stored.AssetID,
			Buyer:     stored.Buyer,
			Seller:    stored.Seller,
			Shares:    stored.Shares,
			TotalPaid: stored.TotalPaid,
			Timestamp: int64(stored.Timestamp),
		}
		record.Allocations = make([]royalty.Allocation, len(stored.Allocations))
		for j, alloc := range stored.Allocations {
			record.Allocations[j] = royalty.Allocation{Account: alloc.Account, Amount: alloc.Amount}
		}
		records[i] = record
	}
	return records, nil
}
