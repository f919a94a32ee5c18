package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"ipchain/core/types"
	"ipchain/native/ipasset"
	"ipchain/native/marketplace"
	"ipchain/native/royalty"
	"ipchain/storage"
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func testAsset(creator [20]byte) *ipasset.IPAsset {
	meta := [32]byte{0xaa}
	return &ipasset.IPAsset{
		ID:          ipasset.AssetID(creator, meta),
		Creator:     creator,
		TotalShares: big.NewInt(1000),
		Beneficiaries: []ipasset.Beneficiary{
			{Account: testAddr(1), BasisPoints: 7000},
			{Account: testAddr(2), BasisPoints: 3000},
		},
		MetaHash:  meta,
		CreatedAt: 1700000000,
	}
}

func TestAccountRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(1)

	account, err := manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, account.Balance.Sign(), "fresh account must start at zero")

	account.Balance = big.NewInt(12345)
	account.Nonce = 7
	require.NoError(t, manager.PutAccount(addr[:], account))

	loaded, err := manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Equal(t, uint64(7), loaded.Nonce)
	require.Zero(t, loaded.Balance.Cmp(big.NewInt(12345)))
}

func TestShareBalanceRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	assetID := [32]byte{0x01}
	holder := testAddr(1)

	balance, err := manager.ShareBalance(assetID, holder)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, manager.SetShareBalance(assetID, holder, big.NewInt(900)))
	balance, err = manager.ShareBalance(assetID, holder)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(900)))

	other := testAddr(2)
	balance, err = manager.ShareBalance(assetID, other)
	require.NoError(t, err)
	require.Zero(t, balance.Sign(), "balances must be per holder")
}

func TestAssetOwnerRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	assetID := [32]byte{0x01}

	_, ok, err := manager.AssetOwner(assetID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.SetAssetOwner(assetID, testAddr(1)))
	owner, ok, err := manager.AssetOwner(assetID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testAddr(1), owner)
}

func TestAssetRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	asset := testAsset(testAddr(1))

	require.NoError(t, manager.AssetPut(asset))
	loaded, ok, err := manager.AssetGet(asset.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, asset.ID, loaded.ID)
	require.Equal(t, asset.Creator, loaded.Creator)
	require.Zero(t, loaded.TotalShares.Cmp(asset.TotalShares))
	require.Equal(t, asset.Beneficiaries, loaded.Beneficiaries)
	require.Equal(t, asset.CreatedAt, loaded.CreatedAt)
}

func TestAssetPutRejectsInvalidRecord(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	asset := testAsset(testAddr(1))
	asset.Beneficiaries[0].BasisPoints = 1
	require.Error(t, manager.AssetPut(asset))
}

func TestListingRoundTripAndIndex(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	asset := testAsset(testAddr(1))
	require.NoError(t, manager.AssetPut(asset))

	listing := &marketplace.Listing{
		ID:            marketplace.ListingID(asset.ID, testAddr(1)),
		AssetID:       asset.ID,
		Seller:        testAddr(1),
		Price:         big.NewInt(500),
		SharesOffered: big.NewInt(100),
		CreatedAt:     1700000100,
		Status:        marketplace.ListingActive,
	}
	require.NoError(t, manager.ListingPut(listing))
	require.NoError(t, manager.ListingIndexAsset(asset.ID, listing.ID))
	// Indexing twice must not duplicate the entry.
	require.NoError(t, manager.ListingIndexAsset(asset.ID, listing.ID))

	loaded, ok, err := manager.ListingGet(listing.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, listing.ID, loaded.ID)
	require.Equal(t, marketplace.ListingActive, loaded.Status)
	require.Zero(t, loaded.Price.Cmp(big.NewInt(500)))

	active, err := manager.AssetHasActiveListing(asset.ID)
	require.NoError(t, err)
	require.True(t, active)

	loaded.Status = marketplace.ListingCancelled
	require.NoError(t, manager.ListingPut(loaded))
	active, err = manager.AssetHasActiveListing(asset.ID)
	require.NoError(t, err)
	require.False(t, active, "terminal listings must not count as active")
}

func TestSettlementJournalAppendOrder(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	listingID := [32]byte{0x05}

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, manager.SettlementAppend(&marketplace.SettlementRecord{
			ListingID: listingID,
			AssetID:   [32]byte{0x01},
			Buyer:     testAddr(2),
			Seller:    testAddr(1),
			Shares:    big.NewInt(i * 10),
			TotalPaid: big.NewInt(i * 100),
			Allocations: []royalty.Allocation{
				{Account: testAddr(3), Amount: big.NewInt(i * 100)},
			},
			Timestamp: 1700000000 + i,
		}))
	}

	records, err := manager.Settlements(listingID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, record := range records {
		require.Zero(t, record.TotalPaid.Cmp(big.NewInt(int64(i+1)*100)))
		require.Equal(t, int64(1700000001+i), record.Timestamp)
		require.Len(t, record.Allocations, 1)
	}
}

func TestSnapshotRevertDiscardsWrites(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(1)

	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Balance: big.NewInt(100)}))
	revision := manager.Snapshot()
	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Balance: big.NewInt(999)}))
	require.NoError(t, manager.SetShareBalance([32]byte{0x01}, addr, big.NewInt(50)))

	manager.RevertToSnapshot(revision)

	account, err := manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, account.Balance.Cmp(big.NewInt(100)), "pre-snapshot write must survive")

	balance, err := manager.ShareBalance([32]byte{0x01}, addr)
	require.NoError(t, err)
	require.Zero(t, balance.Sign(), "post-snapshot write must be discarded")
}

func TestNestedSnapshots(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(1)

	outer := manager.Snapshot()
	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Balance: big.NewInt(100)}))
	inner := manager.Snapshot()
	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Balance: big.NewInt(200)}))

	manager.RevertToSnapshot(inner)
	account, err := manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, account.Balance.Cmp(big.NewInt(100)))

	manager.RevertToSnapshot(outer)
	account, err = manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, account.Balance.Sign())
}

func TestCommitPersistsAcrossManagers(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	asset := testAsset(testAddr(1))

	require.NoError(t, manager.AssetPut(asset))
	require.NoError(t, manager.SetShareBalance(asset.ID, testAddr(1), big.NewInt(1000)))
	require.NoError(t, manager.Commit())

	fresh := NewManager(db)
	loaded, ok, err := fresh.AssetGet(asset.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, asset.ID, loaded.ID)

	balance, err := fresh.ShareBalance(asset.ID, testAddr(1))
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(1000)))
}

func TestRevertAfterCommitIsNoOp(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(1)

	revision := manager.Snapshot()
	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Balance: big.NewInt(100)}))
	require.NoError(t, manager.Commit())

	manager.RevertToSnapshot(revision)
	account, err := manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Zero(t, account.Balance.Cmp(big.NewInt(100)), "committed state must not be revertible")
}
