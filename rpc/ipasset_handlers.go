package rpc

import (
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"ipchain/crypto"
	"ipchain/native/ipasset"
)

type registerAssetParams struct {
	Creator       string            `json:"creator"`
	TotalShares   string            `json:"totalShares"`
	Beneficiaries []beneficiaryJSON `json:"beneficiaries"`
	Meta          string            `json:"meta"`
}

type updateBeneficiariesParams struct {
	AssetID       string            `json:"assetId"`
	Caller        string            `json:"caller"`
	Beneficiaries []beneficiaryJSON `json:"beneficiaries"`
}

type assetIDParams struct {
	AssetID string `json:"assetId"`
}

type shareBalanceParams struct {
	AssetID string `json:"assetId"`
	Account string `json:"account"`
}

func parseAmount(value string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "amount required"}
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount: " + value}
	}
	return amount, nil
}

func parseBeneficiaries(entries []beneficiaryJSON) ([]ipasset.Beneficiary, *RPCError) {
	table := make([]ipasset.Beneficiary, len(entries))
	for i, entry := range entries {
		account, err := crypto.ParseAddress(entry.Account)
		if err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
		}
		table[i] = ipasset.Beneficiary{Account: account, BasisPoints: entry.BasisPoints}
	}
	return table, nil
}

func assetToJSON(asset *ipasset.IPAsset) assetJSON {
	result := assetJSON{
		AssetID:     crypto.FormatHash(asset.ID),
		Creator:     crypto.FormatAddress(asset.Creator),
		TotalShares: asset.TotalShares.String(),
		CreatedAt:   asset.CreatedAt,
	}
	result.Beneficiaries = make([]beneficiaryJSON, len(asset.Beneficiaries))
	for i, entry := range asset.Beneficiaries {
		result.Beneficiaries[i] = beneficiaryJSON{
			Account:     crypto.FormatAddress(entry.Account),
			BasisPoints: entry.BasisPoints,
		}
	}
	return result
}

func (s *Server) handleRegisterAsset(req *RPCRequest) (interface{}, *RPCError) {
	var params registerAssetParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	creator, err := crypto.ParseAddress(params.Creator)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	totalShares, rpcErr := parseAmount(params.TotalShares)
	if rpcErr != nil {
		return nil, rpcErr
	}
	table, rpcErr := parseBeneficiaries(params.Beneficiaries)
	if rpcErr != nil {
		return nil, rpcErr
	}
	metaHash := ethcrypto.Keccak256Hash([]byte(params.Meta))
	asset, err := s.node.RegisterAsset(creator, totalShares, table, metaHash)
	if err != nil {
		return nil, engineError(err)
	}
	return assetToJSON(asset), nil
}

func (s *Server) handleUpdateBeneficiaries(req *RPCRequest) (interface{}, *RPCError) {
	var params updateBeneficiariesParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := crypto.ParseHash(params.AssetID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	table, rpcErr := parseBeneficiaries(params.Beneficiaries)
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset, err := s.node.UpdateBeneficiaries(id, caller, table)
	if err != nil {
		return nil, engineError(err)
	}
	return assetToJSON(asset), nil
}

func (s *Server) handleGetAsset(req *RPCRequest) (interface{}, *RPCError) {
	var params assetIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := crypto.ParseHash(params.AssetID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	asset, err := s.node.GetAsset(id)
	if err != nil {
		return nil, engineError(err)
	}
	return assetToJSON(asset), nil
}

func (s *Server) handleOwnerOf(req *RPCRequest) (interface{}, *RPCError) {
	var params assetIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := crypto.ParseHash(params.AssetID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	owner, err := s.node.OwnerOf(id)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"owner": crypto.FormatAddress(owner)}, nil
}

func (s *Server) handleShareBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params shareBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, err := crypto.ParseHash(params.AssetID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	account, err := crypto.ParseAddress(params.Account)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	balance, err := s.node.ShareBalanceOf(id, account)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}
