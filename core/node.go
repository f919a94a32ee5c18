package core

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"ipchain/core/events"
	"ipchain/core/state"
	"ipchain/native/common"
	"ipchain/native/ipasset"
	"ipchain/native/ledger"
	"ipchain/native/marketplace"
	"ipchain/native/royalty"
	"ipchain/observability"
	"ipchain/storage"
)

// NodeConfig carries the wiring knobs for a settlement node.
type NodeConfig struct {
	// EscrowVault holds purchase payments between the buyer debit and the
	// royalty distribution. Must be non-zero.
	EscrowVault [20]byte
	// ResidualPolicy selects the splitter's rounding-residual rule.
	ResidualPolicy royalty.ResidualPolicy
	// AllowZeroPayment permits zero-amount distributions.
	AllowZeroPayment bool
	// PausedModules lists native modules halted at startup.
	PausedModules []string
	// Emitter receives every engine event. Nil discards events.
	Emitter events.Emitter
	// NowFn overrides the time source, primarily for tests.
	NowFn func() int64
}

var errNilVault = errors.New("node: escrow vault not configured")

// Node wires storage, state and the native engines into the settlement
// entry point. Every operation runs under a single lock and is
// all-or-nothing: state commits only when the engine call succeeds, matching
// a transactional execution environment where each call runs to completion
// or aborts with no observable intermediate state.
type Node struct {
	mu sync.Mutex

	db       storage.Database
	state    *state.Manager
	ledger   *ledger.Ledger
	assets   *ipasset.Engine
	splitter *royalty.Engine
	market   *marketplace.Engine
}

// NewNode constructs a node over the supplied database.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if cfg.EscrowVault == ([20]byte{}) {
		return nil, errNilVault
	}
	manager := state.NewManager(db)

	tokenLedger := ledger.NewLedger()
	tokenLedger.SetState(manager)

	splitter := royalty.NewEngine()
	splitter.SetLedger(tokenLedger)
	splitter.SetState(manager)
	splitter.SetVault(cfg.EscrowVault)
	splitter.SetAllowZeroPayment(cfg.AllowZeroPayment)
	if err := splitter.SetResidualPolicy(cfg.ResidualPolicy); err != nil {
		return nil, err
	}

	assets := ipasset.NewEngine()
	assets.SetState(manager)
	assets.SetLedger(tokenLedger)

	market := marketplace.NewEngine(splitter)
	market.SetState(manager)
	market.SetLedger(tokenLedger)
	market.SetVault(cfg.EscrowVault)

	pauses := common.NewPauseSet(cfg.PausedModules)
	assets.SetPauses(pauses)
	splitter.SetPauses(pauses)
	market.SetPauses(pauses)

	if cfg.Emitter != nil {
		assets.SetEmitter(cfg.Emitter)
		splitter.SetEmitter(cfg.Emitter)
		market.SetEmitter(cfg.Emitter)
	}
	if cfg.NowFn != nil {
		assets.SetNowFunc(cfg.NowFn)
		market.SetNowFunc(cfg.NowFn)
	}

	return &Node{
		db:       db,
		state:    manager,
		ledger:   tokenLedger,
		assets:   assets,
		splitter: splitter,
		market:   market,
	}, nil
}

// run executes one operation under the node lock with whole-call atomicity:
// the state snapshot is reverted on failure and committed on success.
func (n *Node) run(op string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	started := time.Now()
	snapshot := n.state.Snapshot()
	err := fn()
	if err != nil {
		// A stale offer retires the listing even though the purchase fails;
		// that transition is the one deliberate persisted effect.
		if errors.Is(err, marketplace.ErrListingInvalidated) {
			if commitErr := n.state.Commit(); commitErr != nil {
				observability.Metrics().RecordOperation(op, commitErr, started)
				return commitErr
			}
		} else {
			n.state.RevertToSnapshot(snapshot)
		}
		observability.Metrics().RecordOperation(op, err, started)
		return err
	}
	if err := n.state.Commit(); err != nil {
		observability.Metrics().RecordOperation(op, err, started)
		return err
	}
	observability.Metrics().RecordOperation(op, nil, started)
	return nil
}

// RegisterAsset registers an IP asset and mints its share supply to the
// creator.
func (n *Node) RegisterAsset(creator [20]byte, totalShares *big.Int, beneficiaries []ipasset.Beneficiary, metaHash [32]byte) (*ipasset.IPAsset, error) {
	var asset *ipasset.IPAsset
	err := n.run("register_asset", func() error {
		var innerErr error
		asset, innerErr = n.assets.RegisterAsset(creator, totalShares, beneficiaries, metaHash)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// UpdateBeneficiaries replaces the royalty table for the asset.
func (n *Node) UpdateBeneficiaries(id [32]byte, caller [20]byte, table []ipasset.Beneficiary) (*ipasset.IPAsset, error) {
	var asset *ipasset.IPAsset
	err := n.run("update_beneficiaries", func() error {
		var innerErr error
		asset, innerErr = n.assets.UpdateBeneficiaries(id, caller, table)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// GetAsset returns the registry record for the identifier.
func (n *Node) GetAsset(id [32]byte) (*ipasset.IPAsset, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.assets.GetAsset(id)
}

// ListAsset opens a share listing for the seller.
func (n *Node) ListAsset(seller [20]byte, assetID [32]byte, price, sharesOffered *big.Int) (*marketplace.Listing, error) {
	var listing *marketplace.Listing
	err := n.run("list_ip_asset", func() error {
		var innerErr error
		listing, innerErr = n.market.ListAsset(seller, assetID, price, sharesOffered)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// CancelListing retires an active listing.
func (n *Node) CancelListing(seller [20]byte, listingID [32]byte) (*marketplace.Listing, error) {
	var listing *marketplace.Listing
	err := n.run("cancel_listing", func() error {
		var innerErr error
		listing, innerErr = n.market.CancelListing(seller, listingID)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Purchase settles an active listing for the buyer.
func (n *Node) Purchase(buyer [20]byte, listingID [32]byte, payment *big.Int) (*marketplace.SettlementRecord, error) {
	var record *marketplace.SettlementRecord
	err := n.run("purchase", func() error {
		var innerErr error
		record, innerErr = n.market.Purchase(buyer, listingID, payment)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetListing returns the listing record for the identifier.
func (n *Node) GetListing(id [32]byte) (*marketplace.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.GetListing(id)
}

// Settlements returns the append-only settlement journal for the listing.
func (n *Node) Settlements(listingID [32]byte) ([]*marketplace.SettlementRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Settlements(listingID)
}

// OwnerOf returns the canonical owner recorded for the asset.
func (n *Node) OwnerOf(assetID [32]byte) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.OwnerOf(assetID)
}

// ShareBalanceOf returns the holder's share balance for the asset.
func (n *Node) ShareBalanceOf(assetID [32]byte, account [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.BalanceOf(assetID, account)
}

// PaymentBalanceOf returns the payment-denomination balance for the account.
func (n *Node) PaymentBalanceOf(account [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger.PaymentBalanceOf(account)
}

// FundAccount credits payment funds to the account. It backs genesis
// allocations; the settlement engines themselves never create value.
func (n *Node) FundAccount(account [20]byte, amount *big.Int) error {
	return n.run("fund_account", func() error {
		return n.ledger.PaymentCredit(account, amount)
	})
}
