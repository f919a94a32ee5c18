package royalty

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"ipchain/core/events"
	"ipchain/core/types"
	nativecommon "ipchain/native/common"
	"ipchain/native/ipasset"
)

var (
	errNilLedger   = errors.New("royalty engine: ledger not configured")
	errNilVault    = errors.New("royalty engine: escrow vault not configured")
	errNilPayment  = errors.New("royalty engine: payment must not be nil")
	errNegPayment  = errors.New("royalty engine: payment must not be negative")
	errBadResidual = errors.New("royalty engine: unsupported residual policy")

	// ErrEmptyBeneficiaryTable rejects distributions over an empty table.
	ErrEmptyBeneficiaryTable = errors.New("royalty engine: empty beneficiary table")
	// ErrZeroPayment rejects zero-amount distributions under the default
	// policy, avoiding no-op settlement records.
	ErrZeroPayment = errors.New("royalty engine: zero payment")
)

const royaltyModuleName = "royalty"

// DistributionError reports which allocation's ledger transfer failed. The
// whole distribution is rolled back before it is returned.
type DistributionError struct {
	Index int
	Err   error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("royalty engine: distribution failed at allocation %d: %v", e.Index, e.Err)
}

func (e *DistributionError) Unwrap() error { return e.Err }

type paymentLedger interface {
	PaymentTransfer(from, to [20]byte, amount *big.Int) error
}

type engineState interface {
	Snapshot() int
	RevertToSnapshot(int)
}

type royaltyEvent struct {
	evt *types.Event
}

func (e royaltyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e royaltyEvent) Event() *types.Event { return e.evt }

// Engine computes and executes sum-exact royalty distributions. It owns no
// persistent state: each Distribute call is a pure computation followed by
// one ledger transfer per non-zero allocation out of the escrow vault.
type Engine struct {
	ledger    paymentLedger
	state     engineState
	emitter   events.Emitter
	vault     [20]byte
	policy    ResidualPolicy
	allowZero bool
	pauses    nativecommon.PauseView
}

// NewEngine creates a splitter engine with the default residual policy and a
// no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		policy:  ResidualFirstBeneficiary,
	}
}

// SetLedger configures the payment ledger used to execute allocations.
func (e *Engine) SetLedger(ledger paymentLedger) { e.ledger = ledger }

// SetState configures the snapshot facility used to roll back failed
// distributions. Without it Distribute refuses to execute transfers.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault configures the escrow account that holds payments awaiting
// distribution.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetResidualPolicy selects the rounding-residual assignment rule.
func (e *Engine) SetResidualPolicy(policy ResidualPolicy) error {
	if !policy.Valid() {
		return errBadResidual
	}
	e.policy = policy
	return nil
}

// SetAllowZeroPayment permits zero-amount distributions, which produce a
// distribution whose allocations are all zero.
func (e *Engine) SetAllowZeroPayment(allow bool) { e.allowZero = allow }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
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
	e.emitter.Emit(royaltyEvent{evt: evt})
}

// Compute produces the deterministic split of the payment across the table
// without touching the ledger. Every entry receives the floor of its
// proportional entitlement; the residual is then assigned per the configured
// policy. The result always sums to the payment exactly.
func (e *Engine) Compute(payment *big.Int, beneficiaries []Beneficiary) (*Distribution, error) {
	if len(beneficiaries) == 0 {
		return nil, ErrEmptyBeneficiaryTable
	}
	if payment == nil {
		return nil, errNilPayment
	}
	if payment.Sign() < 0 {
		return nil, errNegPayment
	}
	if payment.Sign() == 0 && !e.allowZero {
		return nil, ErrZeroPayment
	}
	if err := ipasset.ValidateBeneficiaries(beneficiaries); err != nil {
		return nil, err
	}
	denominator := big.NewInt(ipasset.BasisPointDenominator)
	dist := &Distribution{
		Payment:     new(big.Int).Set(payment),
		Allocations: make([]Allocation, len(beneficiaries)),
	}
	remainders := make([]*big.Int, len(beneficiaries))
	allocated := big.NewInt(0)
	for i, entry := range beneficiaries {
		scaled := new(big.Int).Mul(payment, new(big.Int).SetUint64(uint64(entry.BasisPoints)))
		amount, remainder := new(big.Int).DivMod(scaled, denominator, new(big.Int))
		dist.Allocations[i] = Allocation{Account: entry.Account, Amount: amount}
		remainders[i] = remainder
		allocated.Add(allocated, amount)
	}
	residual := new(big.Int).Sub(payment, allocated)
	if residual.Sign() < 0 {
		return nil, fmt.Errorf("royalty engine: over-allocated by %s", new(big.Int).Neg(residual))
	}
	if residual.Sign() > 0 {
		switch e.policy {
		case ResidualFirstBeneficiary:
			dist.Allocations[0].Amount = new(big.Int).Add(dist.Allocations[0].Amount, residual)
		case ResidualLargestRemainder:
			// The residual is strictly smaller than the table size, so one
			// extra unit per selected entry always absorbs it.
			order := make([]int, len(remainders))
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool {
				return remainders[order[a]].Cmp(remainders[order[b]]) > 0
			})
			one := big.NewInt(1)
			for _, idx := range order {
				if residual.Sign() == 0 {
					break
				}
				dist.Allocations[idx].Amount = new(big.Int).Add(dist.Allocations[idx].Amount, one)
				residual.Sub(residual, one)
			}
		default:
			return nil, errBadResidual
		}
	}
	return dist, nil
}

// Distribute computes the split and executes one ledger transfer per
// non-zero allocation, moving funds from the escrow vault to each
// beneficiary. If any transfer fails the whole distribution is rolled back
// and a DistributionError identifies the failing allocation.
func (e *Engine) Distribute(payment *big.Int, beneficiaries []Beneficiary) (*Distribution, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	if e.state == nil {
		return nil, errors.New("royalty engine: state not configured")
	}
	if e.vault == ([20]byte{}) {
		return nil, errNilVault
	}
	if err := nativecommon.Guard(e.pauses, royaltyModuleName); err != nil {
		return nil, err
	}
	dist, err := e.Compute(payment, beneficiaries)
	if err != nil {
		return nil, err
	}
	snapshot := e.state.Snapshot()
	for i, alloc := range dist.Allocations {
		if alloc.Amount.Sign() == 0 {
			continue
		}
		if err := e.ledger.PaymentTransfer(e.vault, alloc.Account, alloc.Amount); err != nil {
			e.state.RevertToSnapshot(snapshot)
			return nil, &DistributionError{Index: i, Err: err}
		}
	}
	e.emit(NewDistributedEvent(dist))
	return dist, nil
}
