package ipasset

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"ipchain/core/events"
	"ipchain/core/types"
	nativecommon "ipchain/native/common"
)

var (
	errNilState  = errors.New("ipasset engine: state not configured")
	errNilLedger = errors.New("ipasset engine: ledger not configured")

	// ErrInvalidBeneficiaryTable rejects tables that do not sum to 10,000
	// basis points, contain zero entries, or repeat an account.
	ErrInvalidBeneficiaryTable = errors.New("ipasset engine: invalid beneficiary table")
	// ErrAssetExists rejects registration of an identifier already in use.
	ErrAssetExists = errors.New("ipasset engine: asset already exists")
	// ErrAssetNotFound is returned by lookups against unknown identifiers.
	ErrAssetNotFound = errors.New("ipasset engine: asset not found")
	// ErrUnauthorized rejects beneficiary amendments by anyone but the creator.
	ErrUnauthorized = errors.New("ipasset engine: unauthorized caller")
	// ErrListingActive rejects beneficiary amendments while a listing is open.
	ErrListingActive = errors.New("ipasset engine: active listing references asset")
)

const assetModuleName = "ipasset"

type engineState interface {
	AssetPut(*IPAsset) error
	AssetGet(id [32]byte) (*IPAsset, bool, error)
	AssetHasActiveListing(id [32]byte) (bool, error)
}

type shareLedger interface {
	Mint(assetID [32]byte, to [20]byte, amount *big.Int) error
	SetOwner(assetID [32]byte, owner [20]byte) error
}

type assetEvent struct {
	evt *types.Event
}

func (e assetEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e assetEvent) Event() *types.Event { return e.evt }

// Engine owns the IP-asset registry: creation of asset records with their
// royalty configuration and controlled amendment of beneficiary tables.
// Share supply is minted through the ledger adapter at registration time.
type Engine struct {
	state   engineState
	ledger  shareLedger
	emitter events.Emitter
	nowFn   func() int64
	pauses  nativecommon.PauseView
}

// NewEngine creates a registry engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the share ledger adapter used for minting.
func (e *Engine) SetLedger(ledger shareLedger) { e.ledger = ledger }

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
	e.emitter.Emit(assetEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// AssetID derives the deterministic identifier for a registration request.
func AssetID(creator [20]byte, metaHash [32]byte) [32]byte {
	return ethcrypto.Keccak256Hash(creator[:], metaHash[:])
}

// RegisterAsset validates the royalty configuration, mints the full share
// supply to the creator and persists the asset record. The identifier is
// derived from the creator and metadata hash; a collision fails the call.
func (e *Engine) RegisterAsset(creator [20]byte, totalShares *big.Int, beneficiaries []Beneficiary, metaHash [32]byte) (*IPAsset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, assetModuleName); err != nil {
		return nil, err
	}
	if totalShares == nil || totalShares.Sign() <= 0 {
		return nil, fmt.Errorf("ipasset engine: share supply must be positive")
	}
	if err := ValidateBeneficiaries(beneficiaries); err != nil {
		return nil, err
	}
	id := AssetID(creator, metaHash)
	if _, ok, err := e.state.AssetGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAssetExists
	}
	asset := &IPAsset{
		ID:            id,
		Creator:       creator,
		TotalShares:   new(big.Int).Set(totalShares),
		Beneficiaries: append([]Beneficiary(nil), beneficiaries...),
		MetaHash:      metaHash,
		CreatedAt:     e.now(),
	}
	if err := e.ledger.Mint(id, creator, asset.TotalShares); err != nil {
		return nil, err
	}
	if err := e.ledger.SetOwner(id, creator); err != nil {
		return nil, err
	}
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	e.emit(NewRegisteredEvent(asset))
	return asset.Clone(), nil
}

// UpdateBeneficiaries replaces the royalty table for the asset. Only the
// creator may amend the table, and only while no listing references the
// asset, so an open offer can never settle against a table the buyer did not
// observe.
func (e *Engine) UpdateBeneficiaries(id [32]byte, caller [20]byte, table []Beneficiary) (*IPAsset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, assetModuleName); err != nil {
		return nil, err
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || asset == nil {
		return nil, ErrAssetNotFound
	}
	if asset.Creator != caller {
		return nil, ErrUnauthorized
	}
	active, err := e.state.AssetHasActiveListing(id)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrListingActive
	}
	if err := ValidateBeneficiaries(table); err != nil {
		return nil, err
	}
	updated := asset.Clone()
	updated.Beneficiaries = append([]Beneficiary(nil), table...)
	if err := e.state.AssetPut(updated); err != nil {
		return nil, err
	}
	e.emit(NewBeneficiariesUpdatedEvent(updated))
	return updated.Clone(), nil
}

// GetAsset returns the stored record for the identifier.
func (e *Engine) GetAsset(id [32]byte) (*IPAsset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || asset == nil {
		return nil, ErrAssetNotFound
	}
	return asset.Clone(), nil
}
