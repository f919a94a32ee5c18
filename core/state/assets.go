package state

import (
	"math/big"

	"ipchain/native/ipasset"
)

type storedBeneficiary struct {
	Account     [20]byte
	BasisPoints uint32
}

type storedAsset struct {
	ID            [32]byte
	Creator       [20]byte
	TotalShares   *big.Int
	Beneficiaries []storedBeneficiary
	MetaHash      [32]byte
	CreatedAt     uint64
}

// AssetPut persists the registry record for the asset.
func (m *Manager) AssetPut(asset *ipasset.IPAsset) error {
	sanitized, err := ipasset.SanitizeAsset(asset)
	if err != nil {
		return err
	}
	stored := &storedAsset{
		ID:          sanitized.ID,
		Creator:     sanitized.Creator,
		TotalShares: sanitized.TotalShares,
		MetaHash:    sanitized.MetaHash,
		CreatedAt:   uint64(sanitized.CreatedAt),
	}
	stored.Beneficiaries = make([]storedBeneficiary, len(sanitized.Beneficiaries))
	for i, entry := range sanitized.Beneficiaries {
		stored.Beneficiaries[i] = storedBeneficiary{Account: entry.Account, BasisPoints: entry.BasisPoints}
	}
	return m.KVPut(prefixedKey(assetPrefix, sanitized.ID[:]), stored)
}

// AssetGet loads the registry record for the identifier.
func (m *Manager) AssetGet(id [32]byte) (*ipasset.IPAsset, bool, error) {
	var stored storedAsset
	ok, err := m.KVGet(prefixedKey(assetPrefix, id[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	asset := &ipasset.IPAsset{
		ID:          stored.ID,
		Creator:     stored.Creator,
		TotalShares: stored.TotalShares,
		MetaHash:    stored.MetaHash,
		CreatedAt:   int64(stored.CreatedAt),
	}
	asset.Beneficiaries = make([]ipasset.Beneficiary, len(stored.Beneficiaries))
	for i, entry := range stored.Beneficiaries {
		asset.Beneficiaries[i] = ipasset.Beneficiary{Account: entry.Account, BasisPoints: entry.BasisPoints}
	}
	return asset, true, nil
}
