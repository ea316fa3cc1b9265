package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"nftmarket/native/common"
	"nftmarket/native/market"
)

const (
	codeMarketInvalidParams = -32021
	codeMarketNotFound      = -32022
	codeMarketForbidden     = -32023
	codeMarketConflict      = -32024
	codeMarketInternal      = -32025
)

type marketListParams struct {
	Seller string `json:"seller"`
	Asset  string `json:"asset"`
	Price  uint64 `json:"price"`
}

type marketCancelParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
}

type marketBuyParams struct {
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
	Asset  string `json:"asset"`
}

type marketAssetParams struct {
	Asset string `json:"asset"`
}

type marketBalanceParams struct {
	Address string `json:"address"`
}

type marketHoldingParams struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`
}

type balanceJSON struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type holdingJSON struct {
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Amount  uint64 `json:"amount"`
	Reserve string `json:"reserve"`
}

type assetJSON struct {
	ID              string  `json:"id"`
	Decimals        uint8   `json:"decimals"`
	Supply          uint64  `json:"supply"`
	MintAuthority   *string `json:"mintAuthority,omitempty"`
	FreezeAuthority *string `json:"freezeAuthority,omitempty"`
}

// writeMarketError maps an engine failure onto a JSON-RPC error response so
// each rejected precondition stays distinguishable for the caller.
func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, market.ErrListingNotFound),
		errors.Is(err, market.ErrAssetNotFound),
		errors.Is(err, market.ErrHoldingNotFound):
		writeError(w, http.StatusNotFound, id, codeMarketNotFound, "not_found", err.Error())
	case errors.Is(err, market.ErrUnauthorizedCaller),
		errors.Is(err, market.ErrSelfTrade),
		errors.Is(err, market.ErrSellerMismatch),
		errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusForbidden, id, codeMarketForbidden, "forbidden", err.Error())
	case errors.Is(err, market.ErrListingExists),
		errors.Is(err, market.ErrCustodyAmount),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrInsufficientReserve):
		writeError(w, http.StatusConflict, id, codeMarketConflict, "conflict", err.Error())
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrAssetDivisible),
		errors.Is(err, market.ErrAssetSupply),
		errors.Is(err, market.ErrAssetMintAuthority),
		errors.Is(err, market.ErrAssetFreezeAuthority),
		errors.Is(err, market.ErrSellerHoldingAmount),
		errors.Is(err, market.ErrListingMismatch),
		errors.Is(err, market.ErrBadAuthority):
		writeError(w, http.StatusBadRequest, id, codeMarketInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeMarketInternal, "internal_error", err.Error())
	}
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleMarketList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketListParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseBech32Address(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	assetID, err := parseAssetID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.MarketList(seller, assetID, params.Price)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, toListingJSON(listing))
}

func (s *Server) handleMarketCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketCancelParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	assetID, err := parseAssetID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketCancel(caller, assetID); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params marketBuyParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseBech32Address(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	assetID, err := parseAssetID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketBuy(buyer, seller, assetID); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"sold": true})
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAssetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	assetID, err := parseAssetID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.MarketGet(assetID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, toListingJSON(listing))
}

func (s *Server) handleMarketGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketBalanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := s.node.GetAccount(addr)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &balanceJSON{
		Address: formatAddress(addr),
		Balance: account.Balance.String(),
		Nonce:   account.Nonce,
	})
}

func (s *Server) handleMarketGetHolding(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketHoldingParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	assetID, err := parseAssetID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	holding, ok := s.node.GetHolding(owner, assetID)
	if !ok {
		writeMarketError(w, req.ID, market.ErrHoldingNotFound)
		return
	}
	writeResult(w, req.ID, &holdingJSON{
		Owner:   formatAddress(owner),
		Asset:   hex.EncodeToString(assetID[:]),
		Amount:  holding.Amount,
		Reserve: holding.Reserve.String(),
	})
}

func (s *Server) handleMarketGetAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketAssetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	assetID, err := parseAssetID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, ok := s.node.GetAsset(assetID)
	if !ok {
		writeMarketError(w, req.ID, market.ErrAssetNotFound)
		return
	}
	result := &assetJSON{
		ID:       hex.EncodeToString(asset.ID[:]),
		Decimals: asset.Decimals,
		Supply:   asset.Supply,
	}
	if asset.MintAuthority != nil {
		authority := formatAddress(*asset.MintAuthority)
		result.MintAuthority = &authority
	}
	if asset.FreezeAuthority != nil {
		authority := formatAddress(*asset.FreezeAuthority)
		result.FreezeAuthority = &authority
	}
	writeResult(w, req.ID, result)
}
