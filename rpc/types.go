package rpc

import "encoding/json"

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// RPCResponse is the JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type beneficiaryJSON struct {
	Account     string `json:"account"`
	BasisPoints uint32 `json:"basisPoints"`
}

type assetJSON struct {
	AssetID       string            `json:"assetId"`
	Creator       string            `json:"creator"`
	TotalShares   string            `json:"totalShares"`
	Beneficiaries []beneficiaryJSON `json:"beneficiaries"`
	CreatedAt     int64             `json:"createdAt"`
}

type listingJSON struct {
	ListingID     string `json:"listingId"`
	AssetID       string `json:"assetId"`
	Seller        string `json:"seller"`
	Price         string `json:"price"`
	SharesOffered string `json:"sharesOffered"`
	CreatedAt     int64  `json:"createdAt"`
	Status        string `json:"status"`
}

type allocationJSON struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type settlementJSON struct {
	ListingID   string           `json:"listingId"`
	AssetID     string           `json:"assetId"`
	Buyer       string           `json:"buyer"`
	Seller      string           `json:"seller"`
	Shares      string           `json:"shares"`
	TotalPaid   string           `json:"totalPaid"`
	Allocations []allocationJSON `json:"allocations"`
	Timestamp   int64            `json:"timestamp"`
}
