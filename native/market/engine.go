package market

import (
	"errors"
	"math/big"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

var errNilState = errors.New("market engine: state not configured")

const moduleName = "market"

type engineState interface {
	AssetGet(id [32]byte) (*Asset, bool)
	ListingCreate(l *Listing, payer [20]byte) error
	ListingGet(addr [20]byte) (*Listing, bool)
	ListingClose(addr [20]byte, refundTo [20]byte) error
	HoldingGet(owner [20]byte, asset [32]byte) (*Holding, bool)
	HoldingOpen(owner [20]byte, asset [32]byte, payer [20]byte) (*Holding, error)
	HoldingPut(h *Holding) error
	HoldingClose(owner [20]byte, asset [32]byte, refundTo [20]byte) error
	ListingReserve() *big.Int
	HoldingReserve() *big.Int
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine implements the trade state machine over an injected ledger state.
// Each operation validates every precondition before the first mutation, so a
// rejected call leaves no state change behind.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewEngine creates a market engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the administrative pause view consulted before every
// operation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

// List escrows one unit of the asset and creates the listing record at its
// derived address. The seller pays the record and custody storage reserves.
func (e *Engine) List(seller [20]byte, assetID [32]byte, price uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if price == 0 {
		return nil, ErrInvalidPrice
	}
	asset, ok := e.state.AssetGet(assetID)
	if !ok {
		return nil, ErrAssetNotFound
	}
	if asset.Decimals != 0 {
		return nil, ErrAssetDivisible
	}
	if asset.Supply != 1 {
		return nil, ErrAssetSupply
	}
	if asset.MintAuthority != nil {
		return nil, ErrAssetMintAuthority
	}
	if asset.FreezeAuthority != nil {
		return nil, ErrAssetFreezeAuthority
	}
	sellerHolding, ok := e.state.HoldingGet(seller, assetID)
	if !ok || sellerHolding.Amount != 1 {
		return nil, ErrSellerHoldingAmount
	}
	addr, bump := DeriveListingAddress(assetID)
	if _, ok := e.state.ListingGet(addr); ok {
		return nil, ErrListingExists
	}
	required := new(big.Int).Set(e.state.ListingReserve())
	if _, ok := e.state.HoldingGet(addr, assetID); !ok {
		required.Add(required, e.state.HoldingReserve())
	}
	sellerAcc, err := e.state.GetAccount(seller[:])
	if err != nil {
		return nil, err
	}
	if sellerAcc.Balance == nil || sellerAcc.Balance.Cmp(required) < 0 {
		return nil, ErrInsufficientReserve
	}

	listing := &Listing{Seller: seller, AssetID: assetID, Price: price, Bump: bump}
	if err := e.state.ListingCreate(listing, seller); err != nil {
		return nil, err
	}
	custody, err := e.state.HoldingOpen(addr, assetID, seller)
	if err != nil {
		return nil, err
	}
	if err := e.moveUnit(sellerHolding, custody); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(listing))
	return listing.Clone(), nil
}

// Cancel returns the escrowed unit to the seller and destroys the listing,
// refunding both storage reserves. Only the recorded seller may cancel.
func (e *Engine) Cancel(caller [20]byte, assetID [32]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	addr, _ := DeriveListingAddress(assetID)
	listing, ok := e.state.ListingGet(addr)
	if !ok {
		return ErrListingNotFound
	}
	if listing.AssetID != assetID {
		return ErrListingMismatch
	}
	if caller != listing.Seller {
		return ErrUnauthorizedCaller
	}
	if !VerifyListingAuthority(assetID, listing.Bump, addr) {
		return ErrBadAuthority
	}
	custody, ok := e.state.HoldingGet(addr, assetID)
	if !ok || custody.Amount != 1 {
		return ErrCustodyAmount
	}
	sellerHolding, ok := e.state.HoldingGet(listing.Seller, assetID)
	if !ok {
		return ErrHoldingNotFound
	}

	if err := e.moveUnit(custody, sellerHolding); err != nil {
		return err
	}
	if err := e.state.HoldingClose(addr, assetID, listing.Seller); err != nil {
		return err
	}
	if err := e.state.ListingClose(addr, listing.Seller); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(listing))
	return nil
}

// Buy atomically exchanges the listing price for the escrowed unit: the buyer
// pays the seller, receives the asset, and the emptied custody account and the
// listing record are closed with their reserves refunded to the seller.
func (e *Engine) Buy(buyer, seller [20]byte, assetID [32]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	addr, _ := DeriveListingAddress(assetID)
	listing, ok := e.state.ListingGet(addr)
	if !ok {
		return ErrListingNotFound
	}
	if listing.Seller != seller {
		return ErrSellerMismatch
	}
	if buyer == listing.Seller {
		return ErrSelfTrade
	}
	if listing.Price == 0 {
		return ErrInvalidPrice
	}
	if !VerifyListingAuthority(assetID, listing.Bump, addr) {
		return ErrBadAuthority
	}
	custody, ok := e.state.HoldingGet(addr, assetID)
	if !ok || custody.Amount != 1 {
		return ErrCustodyAmount
	}
	price := new(big.Int).SetUint64(listing.Price)
	required := new(big.Int).Set(price)
	buyerHolding, hasHolding := e.state.HoldingGet(buyer, assetID)
	if !hasHolding {
		required.Add(required, e.state.HoldingReserve())
	}
	buyerAcc, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return err
	}
	if buyerAcc.Balance == nil || buyerAcc.Balance.Cmp(required) < 0 {
		return ErrInsufficientFunds
	}

	if err := e.transferValue(buyer, listing.Seller, price); err != nil {
		return err
	}
	if !hasHolding {
		buyerHolding, err = e.state.HoldingOpen(buyer, assetID, buyer)
		if err != nil {
			return err
		}
	}
	if err := e.moveUnit(custody, buyerHolding); err != nil {
		return err
	}
	if err := e.state.HoldingClose(addr, assetID, listing.Seller); err != nil {
		return err
	}
	if err := e.state.ListingClose(addr, listing.Seller); err != nil {
		return err
	}
	e.emit(NewSoldEvent(listing, buyer))
	return nil
}

// Get returns the live listing for the asset, if any.
func (e *Engine) Get(assetID [32]byte) (*Listing, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	addr, _ := DeriveListingAddress(assetID)
	return e.state.ListingGet(addr)
}

func (e *Engine) moveUnit(from, to *Holding) error {
	if from == nil || to == nil {
		return ErrHoldingNotFound
	}
	if from.Amount != 1 {
		return ErrCustodyAmount
	}
	from.Amount = 0
	to.Amount++
	if err := e.state.HoldingPut(from); err != nil {
		return err
	}
	return e.state.HoldingPut(to)
}

func (e *Engine) transferValue(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidPrice
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	if fromAcc.Balance == nil || fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	if toAcc.Balance == nil {
		toAcc.Balance = big.NewInt(0)
	}
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}
