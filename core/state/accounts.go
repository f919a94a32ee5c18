package state

import (
	"math/big"

	"ipchain/core/types"
)

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads the payment account for the address, returning a zeroed
// account when none is stored yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(prefixedKey(accountPrefix, addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return types.EnsureAccount(&types.Account{Nonce: stored.Nonce, Balance: stored.Balance}), nil
}

// PutAccount persists the payment account for the address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	account = types.EnsureAccount(account)
	return m.KVPut(prefixedKey(accountPrefix, addr), &storedAccount{
		Nonce:   account.Nonce,
		Balance: account.Balance,
	})
}

// ShareBalance returns the holder's fractional-share balance for the asset.
func (m *Manager) ShareBalance(assetID [32]byte, addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.KVGet(prefixedKey(sharePrefix, assetID[:], addr[:]), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// SetShareBalance persists the holder's fractional-share balance for the asset.
func (m *Manager) SetShareBalance(assetID [32]byte, addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.KVPut(prefixedKey(sharePrefix, assetID[:], addr[:]), amount)
}

// AssetOwner returns the canonical owner recorded for the asset.
func (m *Manager) AssetOwner(assetID [32]byte) ([20]byte, bool, error) {
	var owner [20]byte
	ok, err := m.KVGet(prefixedKey(ownerPrefix, assetID[:]), &owner)
	if err != nil {
		return [20]byte{}, false, err
	}
	return owner, ok, nil
}

// SetAssetOwner records the canonical owner for the asset.
func (m *Manager) SetAssetOwner(assetID [32]byte, owner [20]byte) error {
	return m.KVPut(prefixedKey(ownerPrefix, assetID[:]), &owner)
}
