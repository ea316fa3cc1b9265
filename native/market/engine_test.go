package market

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

var (
	testListingReserve = big.NewInt(100)
	testHoldingReserve = big.NewInt(200)
)

type holdingKey struct {
	owner [20]byte
	asset [32]byte
}

type mockState struct {
	assets          map[[32]byte]*Asset
	listings        map[[20]byte]*Listing
	listingReserves map[[20]byte]*big.Int
	holdings        map[holdingKey]*Holding
	accounts        map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		assets:          make(map[[32]byte]*Asset),
		listings:        make(map[[20]byte]*Listing),
		listingReserves: make(map[[20]byte]*big.Int),
		holdings:        make(map[holdingKey]*Holding),
		accounts:        make(map[[20]byte]*types.Account),
	}
}

func (m *mockState) AssetGet(id [32]byte) (*Asset, bool) {
	asset, ok := m.assets[id]
	if !ok {
		return nil, false
	}
	return asset.Clone(), true
}

func (m *mockState) ListingCreate(l *Listing, payer [20]byte) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	addr := sanitized.Address()
	if _, ok := m.listings[addr]; ok {
		return ErrListingExists
	}
	if err := m.debit(payer, testListingReserve); err != nil {
		return err
	}
	m.listings[addr] = sanitized.Clone()
	m.listingReserves[addr] = new(big.Int).Set(testListingReserve)
	return nil
}

func (m *mockState) ListingGet(addr [20]byte) (*Listing, bool) {
	listing, ok := m.listings[addr]
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}

func (m *mockState) ListingClose(addr [20]byte, refundTo [20]byte) error {
	if _, ok := m.listings[addr]; !ok {
		return errors.New("mock: listing not found")
	}
	m.credit(refundTo, m.listingReserves[addr])
	delete(m.listings, addr)
	delete(m.listingReserves, addr)
	return nil
}

func (m *mockState) HoldingGet(owner [20]byte, asset [32]byte) (*Holding, bool) {
	holding, ok := m.holdings[holdingKey{owner, asset}]
	if !ok {
		return nil, false
	}
	return holding.Clone(), true
}

func (m *mockState) HoldingOpen(owner [20]byte, asset [32]byte, payer [20]byte) (*Holding, error) {
	if existing, ok := m.HoldingGet(owner, asset); ok {
		return existing, nil
	}
	if err := m.debit(payer, testHoldingReserve); err != nil {
		return nil, err
	}
	holding := &Holding{Owner: owner, Asset: asset, Amount: 0, Reserve: new(big.Int).Set(testHoldingReserve)}
	m.holdings[holdingKey{owner, asset}] = holding.Clone()
	return holding, nil
}

func (m *mockState) HoldingPut(h *Holding) error {
	if h == nil {
		return errors.New("mock: nil holding")
	}
	m.holdings[holdingKey{h.Owner, h.Asset}] = h.Clone()
	return nil
}

func (m *mockState) HoldingClose(owner [20]byte, asset [32]byte, refundTo [20]byte) error {
	holding, ok := m.holdings[holdingKey{owner, asset}]
	if !ok {
		return errors.New("mock: holding not found")
	}
	if holding.Amount != 0 {
		return errors.New("mock: holding not empty")
	}
	m.credit(refundTo, holding.Reserve)
	delete(m.holdings, holdingKey{owner, asset})
	return nil
}

func (m *mockState) ListingReserve() *big.Int { return new(big.Int).Set(testListingReserve) }
func (m *mockState) HoldingReserve() *big.Int { return new(big.Int).Set(testHoldingReserve) }

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	account, ok := m.accounts[key]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return account.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) debit(addr [20]byte, amt *big.Int) error {
	account, _ := m.GetAccount(addr[:])
	if account.Balance.Cmp(amt) < 0 {
		return errors.New("mock: insufficient balance")
	}
	account.Balance.Sub(account.Balance, amt)
	return m.PutAccount(addr[:], account)
}

func (m *mockState) credit(addr [20]byte, amt *big.Int) {
	account, _ := m.GetAccount(addr[:])
	account.Balance.Add(account.Balance, amt)
	_ = m.PutAccount(addr[:], account)
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) lastType() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1].EventType()
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestAsset(fill byte) [32]byte {
	var id [32]byte
	copy(id[:], bytes.Repeat([]byte{fill}, 32))
	return id
}

func newTestEngine() (*Engine, *mockState, *captureEmitter) {
	state := newMockState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	return engine, state, emitter
}

func seedSingleEdition(state *mockState, assetID [32]byte, holder [20]byte) {
	state.assets[assetID] = &Asset{ID: assetID, Decimals: 0, Supply: 1}
	state.holdings[holdingKey{holder, assetID}] = &Holding{Owner: holder, Asset: assetID, Amount: 1, Reserve: big.NewInt(0)}
}

func fund(state *mockState, addr [20]byte, amount int64) {
	state.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func balanceOf(t *testing.T, state *mockState, addr [20]byte) *big.Int {
	t.Helper()
	account, err := state.GetAccount(addr[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account.Balance
}

func TestListEscrowsAsset(t *testing.T) {
	engine, state, emitter := newTestEngine()
	seller := newTestAddress(0x01)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	listing, err := engine.List(seller, assetID, 500)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listing.Price != 500 || listing.Seller != seller || listing.AssetID != assetID {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	addr, bump := DeriveListingAddress(assetID)
	if listing.Bump != bump {
		t.Fatalf("listing bump = %d, derived %d", listing.Bump, bump)
	}
	custody, ok := state.HoldingGet(addr, assetID)
	if !ok || custody.Amount != 1 {
		t.Fatalf("custody holding = %+v, want amount 1", custody)
	}
	sellerHolding, ok := state.HoldingGet(seller, assetID)
	if !ok || sellerHolding.Amount != 0 {
		t.Fatalf("seller holding = %+v, want amount 0", sellerHolding)
	}
	// Seller paid the record and custody reserves.
	if got := balanceOf(t, state, seller); got.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("seller balance = %s, want 700", got)
	}
	if emitter.lastType() != EventTypeListed {
		t.Fatalf("last event = %q, want %q", emitter.lastType(), EventTypeListed)
	}
}

func TestListValidation(t *testing.T) {
	seller := newTestAddress(0x01)
	assetID := newTestAsset(0xA1)
	authority := newTestAddress(0xEE)

	tests := []struct {
		name    string
		price   uint64
		mutate  func(*mockState)
		wantErr error
	}{
		{name: "zero price", price: 0, wantErr: ErrInvalidPrice},
		{
			name: "unknown asset", price: 500,
			mutate:  func(s *mockState) { delete(s.assets, assetID) },
			wantErr: ErrAssetNotFound,
		},
		{
			name: "divisible asset", price: 500,
			mutate:  func(s *mockState) { s.assets[assetID].Decimals = 2 },
			wantErr: ErrAssetDivisible,
		},
		{
			name: "supply above one", price: 500,
			mutate:  func(s *mockState) { s.assets[assetID].Supply = 2 },
			wantErr: ErrAssetSupply,
		},
		{
			name: "mint authority live", price: 500,
			mutate:  func(s *mockState) { s.assets[assetID].MintAuthority = &authority },
			wantErr: ErrAssetMintAuthority,
		},
		{
			name: "freeze authority live", price: 500,
			mutate:  func(s *mockState) { s.assets[assetID].FreezeAuthority = &authority },
			wantErr: ErrAssetFreezeAuthority,
		},
		{
			name: "seller holding empty", price: 500,
			mutate:  func(s *mockState) { s.holdings[holdingKey{seller, assetID}].Amount = 0 },
			wantErr: ErrSellerHoldingAmount,
		},
		{
			name: "seller holding missing", price: 500,
			mutate:  func(s *mockState) { delete(s.holdings, holdingKey{seller, assetID}) },
			wantErr: ErrSellerHoldingAmount,
		},
		{
			name: "reserve unaffordable", price: 500,
			mutate:  func(s *mockState) { fund(s, seller, 1) },
			wantErr: ErrInsufficientReserve,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, state, emitter := newTestEngine()
			seedSingleEdition(state, assetID, seller)
			fund(state, seller, 1_000)
			if tc.mutate != nil {
				tc.mutate(state)
			}

			if _, err := engine.List(seller, assetID, tc.price); !errors.Is(err, tc.wantErr) {
				t.Fatalf("list error = %v, want %v", err, tc.wantErr)
			}
			addr, _ := DeriveListingAddress(assetID)
			if _, ok := state.ListingGet(addr); ok {
				t.Fatal("rejected list must not create a record")
			}
			if _, ok := state.HoldingGet(addr, assetID); ok {
				t.Fatal("rejected list must not open custody")
			}
			if len(emitter.events) != 0 {
				t.Fatal("rejected list must not emit events")
			}
		})
	}
}

func TestListExclusivePerAsset(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("first list: %v", err)
	}
	// The seller no longer holds the unit, so a relist trips the holding check.
	if _, err := engine.List(seller, assetID, 900); !errors.Is(err, ErrSellerHoldingAmount) {
		t.Fatalf("relist error = %v, want %v", err, ErrSellerHoldingAmount)
	}
	// Even a caller who somehow presents a unit cannot occupy the derived
	// address while the record is live.
	intruder := newTestAddress(0x02)
	state.holdings[holdingKey{intruder, assetID}] = &Holding{Owner: intruder, Asset: assetID, Amount: 1, Reserve: big.NewInt(0)}
	fund(state, intruder, 1_000)
	if _, err := engine.List(intruder, assetID, 123); !errors.Is(err, ErrListingExists) {
		t.Fatalf("intruder list error = %v, want %v", err, ErrListingExists)
	}
}

func TestCancelRestoresSeller(t *testing.T) {
	engine, state, emitter := newTestEngine()
	seller := newTestAddress(0x01)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Cancel(seller, assetID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	addr, _ := DeriveListingAddress(assetID)
	if _, ok := state.ListingGet(addr); ok {
		t.Fatal("listing record must be destroyed on cancel")
	}
	if _, ok := state.HoldingGet(addr, assetID); ok {
		t.Fatal("custody holding must be closed on cancel")
	}
	sellerHolding, ok := state.HoldingGet(seller, assetID)
	if !ok || sellerHolding.Amount != 1 {
		t.Fatalf("seller holding = %+v, want amount 1", sellerHolding)
	}
	// Both storage reserves come back to the seller.
	if got := balanceOf(t, state, seller); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("seller balance = %s, want 1000", got)
	}
	if emitter.lastType() != EventTypeCancelled {
		t.Fatalf("last event = %q, want %q", emitter.lastType(), EventTypeCancelled)
	}
}

func TestCancelValidation(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	outsider := newTestAddress(0x02)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	if err := engine.Cancel(seller, assetID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("cancel without listing = %v, want %v", err, ErrListingNotFound)
	}
	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Cancel(outsider, assetID); !errors.Is(err, ErrUnauthorizedCaller) {
		t.Fatalf("outsider cancel = %v, want %v", err, ErrUnauthorizedCaller)
	}

	addr, _ := DeriveListingAddress(assetID)
	custody := state.holdings[holdingKey{addr, assetID}]
	custody.Amount = 0
	if err := engine.Cancel(seller, assetID); !errors.Is(err, ErrCustodyAmount) {
		t.Fatalf("cancel with drained custody = %v, want %v", err, ErrCustodyAmount)
	}
	custody.Amount = 1
	delete(state.holdings, holdingKey{seller, assetID})
	if err := engine.Cancel(seller, assetID); !errors.Is(err, ErrHoldingNotFound) {
		t.Fatalf("cancel without seller holding = %v, want %v", err, ErrHoldingNotFound)
	}
}

func TestBuyExchangesValueAndAsset(t *testing.T) {
	engine, state, emitter := newTestEngine()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)
	fund(state, buyer, 1_000)

	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Buy(buyer, seller, assetID); err != nil {
		t.Fatalf("buy: %v", err)
	}

	addr, _ := DeriveListingAddress(assetID)
	if _, ok := state.ListingGet(addr); ok {
		t.Fatal("listing record must be destroyed on buy")
	}
	if _, ok := state.HoldingGet(addr, assetID); ok {
		t.Fatal("custody holding must be closed on buy")
	}
	buyerHolding, ok := state.HoldingGet(buyer, assetID)
	if !ok || buyerHolding.Amount != 1 {
		t.Fatalf("buyer holding = %+v, want amount 1", buyerHolding)
	}
	// Buyer paid the price plus their own holding reserve.
	if got := balanceOf(t, state, buyer); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("buyer balance = %s, want 300", got)
	}
	// Seller receives the price and both escrow reserves back.
	if got := balanceOf(t, state, seller); got.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("seller balance = %s, want 1500", got)
	}
	if emitter.lastType() != EventTypeSold {
		t.Fatalf("last event = %q, want %q", emitter.lastType(), EventTypeSold)
	}
}

func TestBuyValidation(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	outsider := newTestAddress(0x03)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	if err := engine.Buy(buyer, seller, assetID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("buy without listing = %v, want %v", err, ErrListingNotFound)
	}
	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Buy(seller, seller, assetID); !errors.Is(err, ErrSelfTrade) {
		t.Fatalf("self buy = %v, want %v", err, ErrSelfTrade)
	}
	if err := engine.Buy(buyer, outsider, assetID); !errors.Is(err, ErrSellerMismatch) {
		t.Fatalf("wrong payout destination = %v, want %v", err, ErrSellerMismatch)
	}
	fund(state, buyer, 500) // price alone, not the holding reserve
	if err := engine.Buy(buyer, seller, assetID); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("underfunded buy = %v, want %v", err, ErrInsufficientFunds)
	}
	// No partial effect: listing and custody remain intact.
	addr, _ := DeriveListingAddress(assetID)
	if _, ok := state.ListingGet(addr); !ok {
		t.Fatal("failed buy must leave the listing live")
	}
	custody, ok := state.HoldingGet(addr, assetID)
	if !ok || custody.Amount != 1 {
		t.Fatalf("failed buy must leave custody intact, got %+v", custody)
	}

	state.holdings[holdingKey{addr, assetID}].Amount = 0
	fund(state, buyer, 10_000)
	if err := engine.Buy(buyer, seller, assetID); !errors.Is(err, ErrCustodyAmount) {
		t.Fatalf("drained custody buy = %v, want %v", err, ErrCustodyAmount)
	}
}

func TestBuyIntoExistingHolding(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	// A pre-existing destination holding is accepted; the buyer only needs the
	// price itself.
	state.holdings[holdingKey{buyer, assetID}] = &Holding{Owner: buyer, Asset: assetID, Amount: 0, Reserve: big.NewInt(0)}
	fund(state, buyer, 500)
	if err := engine.Buy(buyer, seller, assetID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := balanceOf(t, state, buyer); got.Sign() != 0 {
		t.Fatalf("buyer balance = %s, want 0", got)
	}
	holding, ok := state.HoldingGet(buyer, assetID)
	if !ok || holding.Amount != 1 {
		t.Fatalf("buyer holding = %+v, want amount 1", holding)
	}
}

func TestRelistAfterPurchase(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)
	fund(state, buyer, 2_000)

	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Buy(buyer, seller, assetID); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Fresh cycle: the new owner can list the same asset again.
	listing, err := engine.List(buyer, assetID, 750)
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if listing.Seller != buyer || listing.Price != 750 {
		t.Fatalf("unexpected relisting: %+v", listing)
	}
}

func TestCancelThenBuyFails(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)
	fund(state, buyer, 1_000)

	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Cancel(seller, assetID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := engine.Buy(buyer, seller, assetID); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("buy after cancel = %v, want %v", err, ErrListingNotFound)
	}
	sellerHolding, ok := state.HoldingGet(seller, assetID)
	if !ok || sellerHolding.Amount != 1 {
		t.Fatalf("seller holding = %+v, want amount 1", sellerHolding)
	}
}

func TestPausedModuleRejectsOperations(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	engine.SetPauses(nativecommon.StaticPauses{"market": true})
	if _, err := engine.List(seller, assetID, 500); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("paused list = %v, want %v", err, nativecommon.ErrModulePaused)
	}
	engine.SetPauses(nil)
	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("unpaused list: %v", err)
	}
}

func TestGetReturnsLiveListing(t *testing.T) {
	engine, state, _ := newTestEngine()
	seller := newTestAddress(0x01)
	assetID := newTestAsset(0xA1)
	seedSingleEdition(state, assetID, seller)
	fund(state, seller, 1_000)

	if _, ok := engine.Get(assetID); ok {
		t.Fatal("no listing expected before list")
	}
	if _, err := engine.List(seller, assetID, 500); err != nil {
		t.Fatalf("list: %v", err)
	}
	listing, ok := engine.Get(assetID)
	if !ok || listing.Price != 500 {
		t.Fatalf("get listing = %+v, ok=%v", listing, ok)
	}
}
