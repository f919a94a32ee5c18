package rpc

import (
	"ipchain/crypto"
	"ipchain/native/marketplace"
)

type listParams struct {
	Seller        string `json:"seller"`
	AssetID       string `json:"assetId"`
	Price         string `json:"price"`
	SharesOffered string `json:"sharesOffered"`
}

type cancelParams struct {
	Seller    string `json:"seller"`
	ListingID string `json:"listingId"`
}

type purchaseParams struct {
	Buyer     string `json:"buyer"`
	ListingID string `json:"listingId"`
	Payment   string `json:"payment"`
}

type listingIDParams struct {
	ListingID string `json:"listingId"`
}

type bankBalanceParams struct {
	Account string `json:"account"`
}

type bankFundParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func listingToJSON(listing *marketplace.Listing) listingJSON {
	return listingJSON{
		ListingID:     crypto.FormatHash(listing.ID),
		AssetID:       crypto.FormatHash(listing.AssetID),
		Seller:        crypto.FormatAddress(listing.Seller),
		Price:         listing.Price.String(),
		SharesOffered: listing.SharesOffered.String(),
		CreatedAt:     listing.CreatedAt,
		Status:        listing.Status.String(),
	}
}

func settlementToJSON(record *marketplace.SettlementRecord) settlementJSON {
	result := settlementJSON{
		ListingID: crypto.FormatHash(record.ListingID),
		AssetID:   crypto.FormatHash(record.AssetID),
		Buyer:     crypto.FormatAddress(record.Buyer),
		Seller:    crypto.FormatAddress(record.Seller),
		Shares:    record.Shares.String(),
		TotalPaid: record.TotalPaid.String(),
		Timestamp: record.Timestamp,
	}
	result.Allocations = make([]allocationJSON, len(record.Allocations))
	for i, alloc := range record.Allocations {
		result.Allocations[i] = allocationJSON{
			Account: crypto.FormatAddress(alloc.Account),
			Amount:  alloc.Amount.String(),
		}
	}
	return result
}

func (s *Server) handleList(req *RPCRequest) (interface{}, *RPCError) {
	var params listParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	seller, err := crypto.ParseAddress(params.Seller)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	assetID, err := crypto.ParseHash(params.AssetID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	price, rpcErr := parseAmount(params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	shares, rpcErr := parseAmount(params.SharesOffered)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.node.ListAsset(seller, assetID, price, shares)
	if err != nil {
		return nil, engineError(err)
	}
	return listingToJSON(listing), nil
}

func (s *Server) handleCancel(req *RPCRequest) (interface{}, *RPCError) {
	var params cancelParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	seller, err := crypto.ParseAddress(params.Seller)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	listingID, err := crypto.ParseHash(params.ListingID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	listing, err := s.node.CancelListing(seller, listingID)
	if err != nil {
		return nil, engineError(err)
	}
	return listingToJSON(listing), nil
}

func (s *Server) handlePurchase(req *RPCRequest) (interface{}, *RPCError) {
	var params purchaseParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, err := crypto.ParseAddress(params.Buyer)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	listingID, err := crypto.ParseHash(params.ListingID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	payment, rpcErr := parseAmount(params.Payment)
	if rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.node.Purchase(buyer, listingID, payment)
	if err != nil {
		return nil, engineError(err)
	}
	return settlementToJSON(record), nil
}

func (s *Server) handleGetListing(req *RPCRequest) (interface{}, *RPCError) {
	var params listingIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listingID, err := crypto.ParseHash(params.ListingID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	listing, err := s.node.GetListing(listingID)
	if err != nil {
		return nil, engineError(err)
	}
	return listingToJSON(listing), nil
}

func (s *Server) handleSettlements(req *RPCRequest) (interface{}, *RPCError) {
	var params listingIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listingID, err := crypto.ParseHash(params.ListingID)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	records, err := s.node.Settlements(listingID)
	if err != nil {
		return nil, engineError(err)
	}
	result := make([]settlementJSON, len(records))
	for i, record := range records {
		result[i] = settlementToJSON(record)
	}
	return result, nil
}

func (s *Server) handleBankBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params bankBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	account, err := crypto.ParseAddress(params.Account)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	balance, err := s.node.PaymentBalanceOf(account)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

func (s *Server) handleBankFund(req *RPCRequest) (interface{}, *RPCError) {
	var params bankFundParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	account, err := crypto.ParseAddress(params.Account)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FundAccount(account, amount); err != nil {
		return nil, engineError(err)
	}
	balance, err := s.node.PaymentBalanceOf(account)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}
