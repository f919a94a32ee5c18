package ipasset

import (
	"fmt"
	"math/big"
)

// BasisPointDenominator is the full-ownership share expressed in basis
// points. Beneficiary tables must sum to exactly this value.
const BasisPointDenominator = 10_000

// Beneficiary is one royalty recipient with its proportional entitlement in
// basis points.
type Beneficiary struct {
	Account     [20]byte
	BasisPoints uint32
}

// IPAsset captures the registry record for one piece of intellectual
// property: the canonical creator, the fractional share supply minted at
// registration, and the ordered royalty beneficiary table. The identifier is
// the keccak256 hash of the creator and the metadata hash, giving
// deterministic IDs without a separate sequence.
type IPAsset struct {
	ID            [32]byte
	Creator       [20]byte
	TotalShares   *big.Int
	Beneficiaries []Beneficiary
	MetaHash      [32]byte
	CreatedAt     int64
}

// Clone returns a deep copy of the asset so callers can safely mutate the
// copy without affecting the stored instance.
func (a *IPAsset) Clone() *IPAsset {
	if a == nil {
		return nil
	}
	clone := *a
	if a.TotalShares != nil {
		clone.TotalShares = new(big.Int).Set(a.TotalShares)
	} else {
		clone.TotalShares = big.NewInt(0)
	}
	if len(a.Beneficiaries) > 0 {
		clone.Beneficiaries = append([]Beneficiary(nil), a.Beneficiaries...)
	}
	return &clone
}

// ValidateBeneficiaries enforces the registry invariants on a beneficiary
// table: entries sum to exactly 10,000 basis points, no entry is zero, and no
// account appears twice. An empty table is rejected.
func ValidateBeneficiaries(table []Beneficiary) error {
	if len(table) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidBeneficiaryTable)
	}
	seen := make(map[[20]byte]struct{}, len(table))
	var sum uint64
	for i, entry := range table {
		if entry.BasisPoints == 0 {
			return fmt.Errorf("%w: entry %d has zero basis points", ErrInvalidBeneficiaryTable, i)
		}
		if _, ok := seen[entry.Account]; ok {
			return fmt.Errorf("%w: duplicate account at entry %d", ErrInvalidBeneficiaryTable, i)
		}
		seen[entry.Account] = struct{}{}
		sum += uint64(entry.BasisPoints)
		if sum > BasisPointDenominator {
			return fmt.Errorf("%w: basis points sum exceeds %d", ErrInvalidBeneficiaryTable, BasisPointDenominator)
		}
	}
	if sum != BasisPointDenominator {
		return fmt.Errorf("%w: basis points sum %d != %d", ErrInvalidBeneficiaryTable, sum, BasisPointDenominator)
	}
	return nil
}

// SanitizeAsset validates a stored asset record and returns a normalised
// clone with a non-nil share supply.
func SanitizeAsset(a *IPAsset) (*IPAsset, error) {
	if a == nil {
		return nil, fmt.Errorf("nil asset")
	}
	clone := a.Clone()
	if clone.TotalShares.Sign() <= 0 {
		return nil, fmt.Errorf("asset share supply must be positive")
	}
	if err := ValidateBeneficiaries(clone.Beneficiaries); err != nil {
		return nil, err
	}
	return clone, nil
}
