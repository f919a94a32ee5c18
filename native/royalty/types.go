package royalty

import (
	"math/big"

	"ipchain/native/ipasset"
)

// ResidualPolicy selects how the integer remainder of a floor-division split
// is assigned. The default hands the residual to the first beneficiary in
// table order; largest-remainder spreads it across the entries whose
// fractional entitlement was rounded away the hardest.
type ResidualPolicy uint8

const (
	ResidualFirstBeneficiary ResidualPolicy = iota
	ResidualLargestRemainder
)

// Valid reports whether the policy value is within the supported range.
func (p ResidualPolicy) Valid() bool {
	switch p {
	case ResidualFirstBeneficiary, ResidualLargestRemainder:
		return true
	default:
		return false
	}
}

// Allocation is one beneficiary payout inside a distribution.
type Allocation struct {
	Account [20]byte
	Amount  *big.Int
}

// Distribution is the computed, sum-exact split of one payment across a
// beneficiary table. It is ephemeral: the settlement record and emitted event
// carry its allocations, but the distribution itself is never stored.
type Distribution struct {
	Payment     *big.Int
	Allocations []Allocation
}

// Clone returns a deep copy of the distribution.
func (d *Distribution) Clone() *Distribution {
	if d == nil {
		return nil
	}
	clone := &Distribution{Payment: big.NewInt(0)}
	if d.Payment != nil {
		clone.Payment = new(big.Int).Set(d.Payment)
	}
	if len(d.Allocations) > 0 {
		clone.Allocations = make([]Allocation, len(d.Allocations))
		for i, alloc := range d.Allocations {
			clone.Allocations[i] = Allocation{Account: alloc.Account, Amount: big.NewInt(0)}
			if alloc.Amount != nil {
				clone.Allocations[i].Amount = new(big.Int).Set(alloc.Amount)
			}
		}
	}
	return clone
}

// Total returns the sum of all allocation amounts. For any distribution
// produced by Compute this equals the payment exactly.
func (d *Distribution) Total() *big.Int {
	total := big.NewInt(0)
	if d == nil {
		return total
	}
	for _, alloc := range d.Allocations {
		if alloc.Amount != nil {
			total.Add(total, alloc.Amount)
		}
	}
	return total
}

// Beneficiary aliases the registry's beneficiary entry so splitter callers do
// not need to import the registry package for the common case.
type Beneficiary = ipasset.Beneficiary
