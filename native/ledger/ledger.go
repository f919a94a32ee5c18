package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"ipchain/core/types"
)

var (
	errNilState = errors.New("ledger: state not configured")

	// ErrInsufficientBalance is surfaced when a payment debit exceeds the
	// account balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInsufficientShares is surfaced when a share transfer or burn exceeds
	// the holder balance for the asset.
	ErrInsufficientShares = errors.New("ledger: insufficient share balance")
	// ErrUnknownAsset is surfaced by ownership queries against unregistered
	// assets.
	ErrUnknownAsset = errors.New("ledger: unknown asset")
)

type ledgerState interface {
	ShareBalance(assetID [32]byte, addr [20]byte) (*big.Int, error)
	SetShareBalance(assetID [32]byte, addr [20]byte, amount *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	AssetOwner(assetID [32]byte) ([20]byte, bool, error)
	SetAssetOwner(assetID [32]byte, owner [20]byte) error
}

// Ledger is the settlement core's view of the token collaborators: the
// fungible ownership-share ledger (one balance table per asset) and the
// non-fungible asset registry. It is authoritative for balances; engines
// never mutate balances directly.
type Ledger struct {
	state ledgerState
}

// NewLedger constructs a ledger adapter without a state backend. Callers must
// wire one via SetState before use.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState configures the state backend used by the adapter.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Mint credits newly issued ownership shares of the asset to the recipient.
func (l *Ledger) Mint(assetID [32]byte, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("ledger: mint amount must be positive")
	}
	balance, err := l.state.ShareBalance(assetID, to)
	if err != nil {
		return err
	}
	return l.state.SetShareBalance(assetID, to, new(big.Int).Add(cloneBigInt(balance), amt))
}

// Burn removes ownership shares of the asset from the holder.
func (l *Ledger) Burn(assetID [32]byte, from [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("ledger: burn amount must be positive")
	}
	balance, err := l.state.ShareBalance(assetID, from)
	if err != nil {
		return err
	}
	balance = cloneBigInt(balance)
	if balance.Cmp(amt) < 0 {
		return ErrInsufficientShares
	}
	return l.state.SetShareBalance(assetID, from, new(big.Int).Sub(balance, amt))
}

// Transfer moves ownership shares of the asset between holders.
func (l *Ledger) Transfer(assetID [32]byte, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("ledger: negative transfer amount")
	}
	if amt.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.state.ShareBalance(assetID, from)
	if err != nil {
		return err
	}
	fromBalance = cloneBigInt(fromBalance)
	if fromBalance.Cmp(amt) < 0 {
		return ErrInsufficientShares
	}
	// A funded self-transfer moves nothing. Writing both legs would let the
	// stale credit overwrite the debit and mint shares.
	if from == to {
		return nil
	}
	toBalance, err := l.state.ShareBalance(assetID, to)
	if err != nil {
		return err
	}
	if err := l.state.SetShareBalance(assetID, from, new(big.Int).Sub(fromBalance, amt)); err != nil {
		return err
	}
	return l.state.SetShareBalance(assetID, to, new(big.Int).Add(cloneBigInt(toBalance), amt))
}

// BalanceOf returns the holder's share balance for the asset.
func (l *Ledger) BalanceOf(assetID [32]byte, account [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, err := l.state.ShareBalance(assetID, account)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}

// PaymentTransfer moves payment-denomination funds between accounts.
func (l *Ledger) PaymentTransfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("ledger: negative transfer amount")
	}
	if amt.Sign() == 0 {
		return nil
	}
	fromAcc, err := l.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	fromAcc = types.EnsureAccount(fromAcc)
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	// Same no-op rule as the share leg: a self-transfer must not credit a
	// balance read before the debit.
	if from == to {
		return nil
	}
	toAcc, err := l.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	toAcc = types.EnsureAccount(toAcc)
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := l.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to[:], toAcc)
}

// PaymentCredit mints payment-denomination funds to the account. It backs
// genesis allocations and test fixtures; the marketplace never creates value.
func (l *Ledger) PaymentCredit(to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("ledger: credit amount must be positive")
	}
	acc, err := l.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	acc = types.EnsureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amt)
	return l.state.PutAccount(to[:], acc)
}

// PaymentBalanceOf returns the payment-denomination balance for the account.
func (l *Ledger) PaymentBalanceOf(account [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(account[:])
	if err != nil {
		return nil, err
	}
	return cloneBigInt(types.EnsureAccount(acc).Balance), nil
}

// OwnerOf returns the canonical owner recorded for the asset.
func (l *Ledger) OwnerOf(assetID [32]byte) ([20]byte, error) {
	if l == nil || l.state == nil {
		return [20]byte{}, errNilState
	}
	owner, ok, err := l.state.AssetOwner(assetID)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrUnknownAsset
	}
	return owner, nil
}

// SetOwner records the canonical owner for a newly registered asset.
func (l *Ledger) SetOwner(assetID [32]byte, owner [20]byte) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return l.state.SetAssetOwner(assetID, owner)
}

// TransferOwnership reassigns the canonical owner of the asset. Only the
// current owner may be reassigned from; the check lives here because the
// adapter is the sole authority over the ownership record.
func (l *Ledger) TransferOwnership(assetID [32]byte, from, to [20]byte) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	owner, ok, err := l.state.AssetOwner(assetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownAsset
	}
	if owner != from {
		return fmt.Errorf("ledger: %x does not own asset", from)
	}
	return l.state.SetAssetOwner(assetID, to)
}
