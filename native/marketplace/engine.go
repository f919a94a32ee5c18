package marketplace

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"ipchain/core/events"
	"ipchain/core/types"
	nativecommon "ipchain/native/common"
	"ipchain/native/ipasset"
	"ipchain/native/royalty"
)

var (
	errNilState    = errors.New("marketplace engine: state not configured")
	errNilLedger   = errors.New("marketplace engine: ledger not configured")
	errNilSplitter = errors.New("marketplace engine: splitter not configured")

	// ErrAssetNotFound rejects listings against unregistered assets.
	ErrAssetNotFound = errors.New("marketplace engine: asset not found")
	// ErrInsufficientShares rejects listings exceeding the seller balance.
	ErrInsufficientShares = errors.New("marketplace engine: insufficient shares")
	// ErrListingAlreadyActive rejects a second active listing for the same
	// (asset, seller) pair.
	ErrListingAlreadyActive = errors.New("marketplace engine: listing already active")
	// ErrListingNotFound is returned by lookups against unknown identifiers.
	ErrListingNotFound = errors.New("marketplace engine: listing not found")
	// ErrListingNotActive rejects transitions on a terminal listing.
	ErrListingNotActive = errors.New("marketplace engine: listing not active")
	// ErrUnauthorized rejects cancellation by anyone but the seller.
	ErrUnauthorized = errors.New("marketplace engine: unauthorized caller")
	// ErrPriceMismatch rejects purchases whose payment differs from the
	// listed price.
	ErrPriceMismatch = errors.New("marketplace engine: payment does not match price")
	// ErrListingInvalidated signals the seller balance fell below the offer;
	// the listing is retired and the buyer keeps their funds.
	ErrListingInvalidated = errors.New("marketplace engine: listing invalidated")
	// ErrShareTransferFailed wraps a failure in the share leg of a purchase.
	ErrShareTransferFailed = errors.New("marketplace engine: share transfer failed")
)

const marketModuleName = "marketplace"

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id [32]byte) (*Listing, bool, error)
	ListingIndexAsset(assetID [32]byte, listingID [32]byte) error
	AssetGet(id [32]byte) (*ipasset.IPAsset, bool, error)
	SettlementAppend(*SettlementRecord) error
	Snapshot() int
	RevertToSnapshot(int)
}

type ledgerAdapter interface {
	Transfer(assetID [32]byte, from, to [20]byte, amount *big.Int) error
	BalanceOf(assetID [32]byte, account [20]byte) (*big.Int, error)
	PaymentTransfer(from, to [20]byte, amount *big.Int) error
}

type splitter interface {
	Distribute(payment *big.Int, beneficiaries []royalty.Beneficiary) (*royalty.Distribution, error)
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine coordinates the marketplace: listing lifecycle and atomic purchase
// settlement. A purchase moves shares and payment through the ledger adapter
// and routes the proceeds through the splitter as one all-or-nothing unit;
// the engine itself owns no ledger state.
type Engine struct {
	state    engineState
	ledger   ledgerAdapter
	splitter splitter
	emitter  events.Emitter
	vault    [20]byte
	nowFn    func() int64
	pauses   nativecommon.PauseView
}

// NewEngine creates a marketplace engine bound to the supplied splitter.
func NewEngine(split splitter) *Engine {
	return &Engine{
		splitter: split,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger adapter.
func (e *Engine) SetLedger(ledger ledgerAdapter) { e.ledger = ledger }

// SetVault configures the escrow account payments are pulled into before
// distribution. It must match the splitter's vault.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPauses wires the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// ListingID derives the deterministic identifier for a listing.
func ListingID(assetID [32]byte, seller [20]byte) [32]byte {
	return ethcrypto.Keccak256Hash(assetID[:], seller[:])
}

func (e *Engine) loadListing(id [32]byte) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.ListingGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || listing == nil {
		return nil, ErrListingNotFound
	}
	return SanitizeListing(listing)
}

// ListAsset opens a listing of the seller's shares in the asset. The offer is
// checked against the live seller balance through the ledger adapter, and at
// most one active listing may exist per (asset, seller) pair.
func (e *Engine) ListAsset(seller [20]byte, assetID [32]byte, price, sharesOffered *big.Int) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("marketplace engine: price must be positive")
	}
	if sharesOffered == nil || sharesOffered.Sign() <= 0 {
		return nil, fmt.Errorf("marketplace engine: shares offered must be positive")
	}
	if _, ok, err := e.state.AssetGet(assetID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrAssetNotFound
	}
	balance, err := e.ledger.BalanceOf(assetID, seller)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(sharesOffered) < 0 {
		return nil, ErrInsufficientShares
	}
	id := ListingID(assetID, seller)
	if existing, ok, err := e.state.ListingGet(id); err != nil {
		return nil, err
	} else if ok && existing != nil && existing.Status == ListingActive {
		return nil, ErrListingAlreadyActive
	}
	listing := &Listing{
		ID:            id,
		AssetID:       assetID,
		Seller:        seller,
		Price:         new(big.Int).Set(price),
		SharesOffered: new(big.Int).Set(sharesOffered),
		CreatedAt:     e.now(),
		Status:        ListingActive,
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	if err := e.state.ListingIndexAsset(assetID, id); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(listing))
	return listing.Clone(), nil
}

// CancelListing retires an active listing. Only the seller may cancel, and a
// second cancellation fails rather than silently double-cancelling.
func (e *Engine) CancelListing(seller [20]byte, listingID [32]byte) (*Listing, error) {
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return nil, err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != ListingActive {
		return nil, ErrListingNotActive
	}
	if listing.Seller != seller {
		return nil, ErrUnauthorized
	}
	listing.Status = ListingCancelled
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(listing))
	return listing.Clone(), nil
}

// Purchase settles an active listing for the buyer. As one logical unit it
// moves the offered shares seller to buyer, pulls the payment from the buyer
// into the escrow vault, distributes the proceeds across the asset's
// beneficiary table and appends the settlement record. Any failure after the
// stale-offer check reverts every movement; there is no state where shares
// moved but payment did not settle.
func (e *Engine) Purchase(buyer [20]byte, listingID [32]byte, payment *big.Int) (*SettlementRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if e.splitter == nil {
		return nil, errNilSplitter
	}
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return nil, err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != ListingActive {
		return nil, ErrListingNotActive
	}
	if payment == nil || listing.Price.Cmp(payment) != 0 {
		return nil, ErrPriceMismatch
	}
	asset, ok, err := e.state.AssetGet(listing.AssetID)
	if err != nil {
		return nil, err
	}
	if !ok || asset == nil {
		return nil, ErrAssetNotFound
	}
	sellerBalance, err := e.ledger.BalanceOf(listing.AssetID, listing.Seller)
	if err != nil {
		return nil, err
	}
	if sellerBalance.Cmp(listing.SharesOffered) < 0 {
		// The offer went stale: retire the listing. No payment has moved yet,
		// so this transition is the only persisted effect.
		listing.Status = ListingInvalidated
		if err := e.state.ListingPut(listing); err != nil {
			return nil, err
		}
		e.emit(NewInvalidatedEvent(listing))
		return nil, ErrListingInvalidated
	}
	snapshot := e.state.Snapshot()
	if err := e.ledger.Transfer(listing.AssetID, listing.Seller, buyer, listing.SharesOffered); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, fmt.Errorf("%w: %v", ErrShareTransferFailed, err)
	}
	if err := e.ledger.PaymentTransfer(buyer, e.vault, payment); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	dist, err := e.splitter.Distribute(payment, asset.Beneficiaries)
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	record := &SettlementRecord{
		ListingID:   listing.ID,
		AssetID:     listing.AssetID,
		Buyer:       buyer,
		Seller:      listing.Seller,
		Shares:      new(big.Int).Set(listing.SharesOffered),
		TotalPaid:   new(big.Int).Set(payment),
		Allocations: dist.Clone().Allocations,
		Timestamp:   e.now(),
	}
	if err := e.state.SettlementAppend(record); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	listing.Status = ListingSold
	if err := e.state.ListingPut(listing); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return nil, err
	}
	e.emit(NewSettledEvent(listing, record))
	return record.Clone(), nil
}

// GetListing returns the stored listing for the identifier.
func (e *Engine) GetListing(id [32]byte) (*Listing, error) {
	return e.loadListing(id)
}
