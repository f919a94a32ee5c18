package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"ipchain/core"
	"ipchain/native/ipasset"
	"ipchain/native/ledger"
	"ipchain/native/marketplace"
	"ipchain/native/royalty"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeNotFound       = -32010
	codeConflict       = -32011
	codeForbidden      = -32012
	codeStaleState     = -32013
	codeTransferFailed = -32014
)

// Server exposes the settlement core over JSON-RPC 2.0. Write methods can be
// protected with a bearer token supplied via the IPCHAIN_RPC_TOKEN
// environment variable.
type Server struct {
	node      *core.Node
	authToken string
}

// NewServer constructs an RPC server around the node.
func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv("IPCHAIN_RPC_TOKEN")),
	}
}

// Handler returns the HTTP handler serving the JSON-RPC endpoint. The caller
// owns the http.Server wrapping it, including timeouts and shutdown.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

var writeMethods = map[string]bool{
	"ip_registerAsset":       true,
	"ip_updateBeneficiaries": true,
	"market_list":            true,
	"market_cancel":          true,
	"market_purchase":        true,
	"bank_fund":              true,
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeRPCError(w, nil, codeParseError, "unable to read request body", "")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeRPCError(w, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", req.JSONRPC)
		return
	}
	if writeMethods[req.Method] && !s.authorized(r) {
		writeRPCError(w, req.ID, codeUnauthorized, "unauthorized", "")
		return
	}
	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		writeRPCError(w, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeRPCResult(w, req.ID, result)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token := strings.TrimPrefix(header, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

func (s *Server) dispatch(req *RPCRequest) (interface{}, *RPCError) {
	switch req.Method {
	case "ip_registerAsset":
		return s.handleRegisterAsset(req)
	case "ip_updateBeneficiaries":
		return s.handleUpdateBeneficiaries(req)
	case "ip_getAsset":
		return s.handleGetAsset(req)
	case "ip_ownerOf":
		return s.handleOwnerOf(req)
	case "ip_shareBalance":
		return s.handleShareBalance(req)
	case "market_list":
		return s.handleList(req)
	case "market_cancel":
		return s.handleCancel(req)
	case "market_purchase":
		return s.handlePurchase(req)
	case "market_getListing":
		return s.handleGetListing(req)
	case "market_settlements":
		return s.handleSettlements(req)
	case "bank_balance":
		return s.handleBankBalance(req)
	case "bank_fund":
		return s.handleBankFund(req)
	default:
		return nil, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) == 0 {
		return &RPCError{Code: codeInvalidParams, Message: "params required"}
	}
	params := req.Params
	// Accept both positional single-object and bare-object forms.
	var list []json.RawMessage
	if err := json.Unmarshal(params, &list); err == nil {
		if len(list) != 1 {
			return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
		}
		params = list[0]
	}
	if err := json.Unmarshal(params, out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "malformed params", Data: err.Error()}
	}
	return nil
}

// engineError maps the error taxonomy onto JSON-RPC codes so marketplace
// clients can distinguish bad input from stale state from downstream
// transfer failure.
func engineError(err error) *RPCError {
	var distErr *royalty.DistributionError
	switch {
	case errors.Is(err, ipasset.ErrAssetNotFound),
		errors.Is(err, marketplace.ErrListingNotFound):
		return &RPCError{Code: codeNotFound, Message: err.Error()}
	case errors.Is(err, ipasset.ErrUnauthorized),
		errors.Is(err, marketplace.ErrUnauthorized):
		return &RPCError{Code: codeForbidden, Message: err.Error()}
	case errors.Is(err, ipasset.ErrAssetExists),
		errors.Is(err, ipasset.ErrListingActive),
		errors.Is(err, marketplace.ErrListingAlreadyActive):
		return &RPCError{Code: codeConflict, Message: err.Error()}
	case errors.Is(err, marketplace.ErrListingNotActive),
		errors.Is(err, marketplace.ErrListingInvalidated):
		return &RPCError{Code: codeStaleState, Message: err.Error()}
	case errors.As(err, &distErr),
		errors.Is(err, marketplace.ErrShareTransferFailed),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, marketplace.ErrInsufficientShares):
		return &RPCError{Code: codeTransferFailed, Message: err.Error()}
	case errors.Is(err, ipasset.ErrInvalidBeneficiaryTable),
		errors.Is(err, royalty.ErrEmptyBeneficiaryTable),
		errors.Is(err, royalty.ErrZeroPayment),
		errors.Is(err, marketplace.ErrPriceMismatch):
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error()}
	}
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message, data string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}
