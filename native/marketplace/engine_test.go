package marketplace

import (
	"errors"
	"math/big"
	"testing"

	"ipchain/native/ipasset"
	"ipchain/native/royalty"
)

// mockWorld backs both the state and ledger interfaces so rollback is
// observable: Snapshot deep-copies the world and RevertToSnapshot restores it,
// matching the journalled state manager the engine runs against in production.
type mockWorld struct {
	assets      map[[32]byte]*ipasset.IPAsset
	listings    map[[32]byte]*Listing
	index       map[[32]byte][][32]byte
	settlements map[[32]byte][]*SettlementRecord
	shares      map[[32]byte]map[[20]byte]*big.Int
	balances    map[[20]byte]*big.Int

	snapshots []*mockWorld
}

func newMockWorld() *mockWorld {
	return &mockWorld{
		assets:      make(map[[32]byte]*ipasset.IPAsset),
		listings:    make(map[[32]byte]*Listing),
		index:       make(map[[32]byte][][32]byte),
		settlements: make(map[[32]byte][]*SettlementRecord),
		shares:      make(map[[32]byte]map[[20]byte]*big.Int),
		balances:    make(map[[20]byte]*big.Int),
	}
}

func (w *mockWorld) copy() *mockWorld {
	c := newMockWorld()
	for k, v := range w.assets {
		c.assets[k] = v.Clone()
	}
	for k, v := range w.listings {
		c.listings[k] = v.Clone()
	}
	for k, v := range w.index {
		c.index[k] = append([][32]byte(nil), v...)
	}
	for k, v := range w.settlements {
		records := make([]*SettlementRecord, len(v))
		for i, r := range v {
			records[i] = r.Clone()
		}
		c.settlements[k] = records
	}
	for asset, holders := range w.shares {
		inner := make(map[[20]byte]*big.Int, len(holders))
		for holder, amount := range holders {
			inner[holder] = new(big.Int).Set(amount)
		}
		c.shares[asset] = inner
	}
	for account, amount := range w.balances {
		c.balances[account] = new(big.Int).Set(amount)
	}
	return c
}

func (w *mockWorld) restore(from *mockWorld) {
	w.assets = from.assets
	w.listings = from.listings
	w.index = from.index
	w.settlements = from.settlements
	w.shares = from.shares
	w.balances = from.balances
}

func (w *mockWorld) Snapshot() int {
	w.snapshots = append(w.snapshots, w.copy())
	return len(w.snapshots) - 1
}

func (w *mockWorld) RevertToSnapshot(id int) {
	if id < 0 || id >= len(w.snapshots) {
		return
	}
	w.restore(w.snapshots[id])
	w.snapshots = w.snapshots[:id]
}

func (w *mockWorld) ListingPut(l *Listing) error {
	w.listings[l.ID] = l.Clone()
	return nil
}

func (w *mockWorld) ListingGet(id [32]byte) (*Listing, bool, error) {
	listing, ok := w.listings[id]
	if !ok {
		return nil, false, nil
	}
	return listing.Clone(), true, nil
}

func (w *mockWorld) ListingIndexAsset(assetID [32]byte, listingID [32]byte) error {
	w.index[assetID] = append(w.index[assetID], listingID)
	return nil
}

func (w *mockWorld) AssetGet(id [32]byte) (*ipasset.IPAsset, bool, error) {
	asset, ok := w.assets[id]
	if !ok {
		return nil, false, nil
	}
	return asset.Clone(), true, nil
}

func (w *mockWorld) SettlementAppend(r *SettlementRecord) error {
	w.settlements[r.ListingID] = append(w.settlements[r.ListingID], r.Clone())
	return nil
}

func (w *mockWorld) Transfer(assetID [32]byte, from, to [20]byte, amount *big.Int) error {
	holders := w.shares[assetID]
	fromBalance := big.NewInt(0)
	if holders != nil && holders[from] != nil {
		fromBalance = holders[from]
	}
	if fromBalance.Cmp(amount) < 0 {
		return errors.New("mock: insufficient shares")
	}
	if holders == nil {
		holders = make(map[[20]byte]*big.Int)
		w.shares[assetID] = holders
	}
	holders[from] = new(big.Int).Sub(fromBalance, amount)
	toBalance := big.NewInt(0)
	if holders[to] != nil {
		toBalance = holders[to]
	}
	holders[to] = new(big.Int).Add(toBalance, amount)
	return nil
}

func (w *mockWorld) BalanceOf(assetID [32]byte, account [20]byte) (*big.Int, error) {
	holders := w.shares[assetID]
	if holders == nil || holders[account] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(holders[account]), nil
}

func (w *mockWorld) PaymentTransfer(from, to [20]byte, amount *big.Int) error {
	fromBalance := w.balances[from]
	if fromBalance == nil {
		fromBalance = big.NewInt(0)
	}
	if fromBalance.Cmp(amount) < 0 {
		return errors.New("mock: insufficient funds")
	}
	toBalance := w.balances[to]
	if toBalance == nil {
		toBalance = big.NewInt(0)
	}
	w.balances[from] = new(big.Int).Sub(fromBalance, amount)
	w.balances[to] = new(big.Int).Add(toBalance, amount)
	return nil
}

func (w *mockWorld) setShares(assetID [32]byte, account [20]byte, amount int64) {
	holders := w.shares[assetID]
	if holders == nil {
		holders = make(map[[20]byte]*big.Int)
		w.shares[assetID] = holders
	}
	holders[account] = big.NewInt(amount)
}

type mockSplitter struct {
	err   error
	calls int
}

func (m *mockSplitter) Distribute(payment *big.Int, beneficiaries []royalty.Beneficiary) (*royalty.Distribution, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	dist := &royalty.Distribution{
		Payment:     new(big.Int).Set(payment),
		Allocations: make([]royalty.Allocation, len(beneficiaries)),
	}
	remaining := new(big.Int).Set(payment)
	for i, entry := range beneficiaries {
		amount := new(big.Int).Mul(payment, new(big.Int).SetUint64(uint64(entry.BasisPoints)))
		amount.Div(amount, big.NewInt(ipasset.BasisPointDenominator))
		if i == len(beneficiaries)-1 {
			amount = remaining
		}
		dist.Allocations[i] = royalty.Allocation{Account: entry.Account, Amount: amount}
		remaining = new(big.Int).Sub(remaining, amount)
	}
	return dist, nil
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

var (
	seller = addr(1)
	buyer  = addr(2)
	vault  = addr(0xee)
)

func registerAsset(w *mockWorld, creator [20]byte, supply int64) *ipasset.IPAsset {
	meta := [32]byte{0xaa}
	asset := &ipasset.IPAsset{
		ID:          ipasset.AssetID(creator, meta),
		Creator:     creator,
		TotalShares: big.NewInt(supply),
		Beneficiaries: []ipasset.Beneficiary{
			{Account: addr(3), BasisPoints: 7000},
			{Account: addr(4), BasisPoints: 3000},
		},
		MetaHash:  meta,
		CreatedAt: 1700000000,
	}
	w.assets[asset.ID] = asset
	w.setShares(asset.ID, creator, supply)
	return asset
}

func newTestEngine(t *testing.T, w *mockWorld, split splitter) *Engine {
	t.Helper()
	engine := NewEngine(split)
	engine.SetState(w)
	engine.SetLedger(w)
	engine.SetVault(vault)
	engine.SetNowFunc(func() int64 { return 1700000100 })
	return engine
}

func TestListAsset(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	engine := newTestEngine(t, w, &mockSplitter{})

	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listing.ID != ListingID(asset.ID, seller) {
		t.Fatalf("unexpected listing id")
	}
	if listing.Status != ListingActive {
		t.Fatalf("status = %s, want active", listing.Status)
	}
	if got := w.index[asset.ID]; len(got) != 1 || got[0] != listing.ID {
		t.Fatalf("listing not indexed under asset")
	}
}

func TestListAssetUnknownAsset(t *testing.T) {
	w := newMockWorld()
	engine := newTestEngine(t, w, &mockSplitter{})
	if _, err := engine.ListAsset(seller, [32]byte{0xff}, big.NewInt(500), big.NewInt(100)); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestListAssetInsufficientShares(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 50)
	engine := newTestEngine(t, w, &mockSplitter{})
	if _, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestListAssetRejectsSecondActiveListing(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	engine := newTestEngine(t, w, &mockSplitter{})
	if _, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := engine.ListAsset(seller, asset.ID, big.NewInt(600), big.NewInt(50)); !errors.Is(err, ErrListingAlreadyActive) {
		t.Fatalf("expected ErrListingAlreadyActive, got %v", err)
	}
}

func TestListAssetRejectsNonPositiveTerms(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	engine := newTestEngine(t, w, &mockSplitter{})
	if _, err := engine.ListAsset(seller, asset.ID, big.NewInt(0), big.NewInt(100)); err == nil {
		t.Fatalf("expected error for zero price")
	}
	if _, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero shares")
	}
}

func TestCancelListing(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	engine := newTestEngine(t, w, &mockSplitter{})
	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	cancelled, err := engine.CancelListing(seller, listing.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != ListingCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if _, err := engine.CancelListing(seller, listing.ID); !errors.Is(err, ErrListingNotActive) {
		t.Fatalf("expected ErrListingNotActive on double cancel, got %v", err)
	}
}

func TestCancelListingRejectsNonSeller(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	engine := newTestEngine(t, w, &mockSplitter{})
	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := engine.CancelListing(buyer, listing.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRelistAfterCancel(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	engine := newTestEngine(t, w, &mockSplitter{})
	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := engine.CancelListing(seller, listing.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	relisted, err := engine.ListAsset(seller, asset.ID, big.NewInt(700), big.NewInt(200))
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if relisted.Price.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("relisted price = %s, want 700", relisted.Price)
	}
}

func TestPurchaseSettlesListing(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	w.balances[buyer] = big.NewInt(500)
	split := &mockSplitter{}
	engine := newTestEngine(t, w, split)

	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	record, err := engine.Purchase(buyer, listing.ID, big.NewInt(500))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if record.Buyer != buyer || record.Seller != seller {
		t.Fatalf("record parties wrong: %+v", record)
	}
	if record.TotalPaid.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("total paid = %s, want 500", record.TotalPaid)
	}
	if split.calls != 1 {
		t.Fatalf("splitter calls = %d, want 1", split.calls)
	}
	buyerShares, _ := w.BalanceOf(asset.ID, buyer)
	if buyerShares.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("buyer shares = %s, want 100", buyerShares)
	}
	sellerShares, _ := w.BalanceOf(asset.ID, seller)
	if sellerShares.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("seller shares = %s, want 900", sellerShares)
	}
	if got := w.balances[buyer]; got.Sign() != 0 {
		t.Fatalf("buyer balance = %s, want 0", got)
	}
	stored := w.listings[listing.ID]
	if stored.Status != ListingSold {
		t.Fatalf("status = %s, want sold", stored.Status)
	}
	if len(w.settlements[listing.ID]) != 1 {
		t.Fatalf("settlement record not appended")
	}
}

func TestPurchaseRejectsPriceMismatch(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	w.balances[buyer] = big.NewInt(500)
	engine := newTestEngine(t, w, &mockSplitter{})

	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := engine.Purchase(buyer, listing.ID, big.NewInt(499)); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch, got %v", err)
	}
	if _, err := engine.Purchase(buyer, listing.ID, nil); !errors.Is(err, ErrPriceMismatch) {
		t.Fatalf("expected ErrPriceMismatch for nil payment, got %v", err)
	}
}

func TestPurchaseRejectsTerminalListing(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	w.balances[buyer] = big.NewInt(1000)
	engine := newTestEngine(t, w, &mockSplitter{})

	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := engine.Purchase(buyer, listing.ID, big.NewInt(500)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := engine.Purchase(buyer, listing.ID, big.NewInt(500)); !errors.Is(err, ErrListingNotActive) {
		t.Fatalf("expected ErrListingNotActive on double purchase, got %v", err)
	}
}

func TestPurchaseUnknownListing(t *testing.T) {
	w := newMockWorld()
	engine := newTestEngine(t, w, &mockSplitter{})
	if _, err := engine.Purchase(buyer, [32]byte{0xff}, big.NewInt(500)); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
}

func TestPurchaseInvalidatesStaleListing(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	w.balances[buyer] = big.NewInt(500)
	engine := newTestEngine(t, w, &mockSplitter{})

	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The seller's shares move out from under the listing.
	if err := w.Transfer(asset.ID, seller, addr(9), big.NewInt(950)); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := engine.Purchase(buyer, listing.ID, big.NewInt(500)); !errors.Is(err, ErrListingInvalidated) {
		t.Fatalf("expected ErrListingInvalidated, got %v", err)
	}
	stored := w.listings[listing.ID]
	if stored.Status != ListingInvalidated {
		t.Fatalf("status = %s, want invalidated", stored.Status)
	}
	if got := w.balances[buyer]; got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("buyer balance = %s, want untouched 500", got)
	}
	// The retired listing clears the way for a fresh one.
	w.setShares(asset.ID, seller, 100)
	if _, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100)); err != nil {
		t.Fatalf("relist after invalidation: %v", err)
	}
}

func TestPurchaseRollsBackOnDistributionFailure(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	w.balances[buyer] = big.NewInt(500)
	split := &mockSplitter{err: errors.New("downstream transfer failed")}
	engine := newTestEngine(t, w, split)

	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := engine.Purchase(buyer, listing.ID, big.NewInt(500)); err == nil {
		t.Fatalf("expected purchase failure")
	}
	sellerShares, _ := w.BalanceOf(asset.ID, seller)
	if sellerShares.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("seller shares = %s, want restored 1000", sellerShares)
	}
	if got := w.balances[buyer]; got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("buyer balance = %s, want restored 500", got)
	}
	stored := w.listings[listing.ID]
	if stored.Status != ListingActive {
		t.Fatalf("status = %s, want still active", stored.Status)
	}
	if len(w.settlements[listing.ID]) != 0 {
		t.Fatalf("settlement must not persist on failure")
	}
}

func TestPurchaseRollsBackOnInsufficientFunds(t *testing.T) {
	w := newMockWorld()
	asset := registerAsset(w, seller, 1000)
	w.balances[buyer] = big.NewInt(100)
	engine := newTestEngine(t, w, &mockSplitter{})

	listing, err := engine.ListAsset(seller, asset.ID, big.NewInt(500), big.NewInt(100))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := engine.Purchase(buyer, listing.ID, big.NewInt(500)); err == nil {
		t.Fatalf("expected purchase failure")
	}
	sellerShares, _ := w.BalanceOf(asset.ID, seller)
	if sellerShares.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("seller shares = %s, want restored 1000", sellerShares)
	}
	stored := w.listings[listing.ID]
	if stored.Status != ListingActive {
		t.Fatalf("status = %s, want still active", stored.Status)
	}
}

func TestListingStatusTransitions(t *testing.T) {
	if ListingActive.Terminal() {
		t.Fatalf("active must not be terminal")
	}
	for _, status := range []ListingStatus{ListingSold, ListingCancelled, ListingInvalidated} {
		if !status.Terminal() {
			t.Fatalf("%s must be terminal", status)
		}
	}
	if ListingStatus(200).Valid() {
		t.Fatalf("out-of-range status must be invalid")
	}
}
