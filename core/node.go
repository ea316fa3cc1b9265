package core

import (
	"math/big"
	"sync"

	"nftmarket/core/events"
	"nftmarket/core/genesis"
	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/storage"
)

// Node owns the ledger database and the market engine and serialises every
// operation behind a single mutex. The underlying store applies each
// operation's writes before the next operation observes state, which gives
// the trade state machine its first-creation-wins semantics.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	manager *state.Manager
	engine  *market.Engine
}

// NewNode constructs a node over the provided database.
func NewNode(db storage.Database) *Node {
	manager := state.NewManager(db)
	engine := market.NewEngine()
	engine.SetState(manager)
	return &Node{db: db, manager: manager, engine: engine}
}

// SetEmitter wires an event emitter into the market engine.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.engine.SetEmitter(emitter)
}

// SetPauses wires the administrative pause view into the market engine.
func (n *Node) SetPauses(p common.PauseView) {
	n.engine.SetPauses(p)
}

// ApplyGenesis folds the genesis document into an empty database. Calling it
// against an initialised database is a no-op.
func (n *Node) ApplyGenesis(g *genesis.Genesis) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	applied, err := n.manager.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	if err := g.Validate(); err != nil {
		return err
	}
	for _, account := range g.Accounts {
		addr, balance, err := account.Decode()
		if err != nil {
			return err
		}
		if err := n.manager.PutAccount(addr[:], &types.Account{Balance: balance}); err != nil {
			return err
		}
	}
	for _, entry := range g.Assets {
		id, holder, err := entry.Decode()
		if err != nil {
			return err
		}
		if err := n.manager.AssetPut(&market.Asset{ID: id, Decimals: 0, Supply: 1}); err != nil {
			return err
		}
		holding := &market.Holding{Owner: holder, Asset: id, Amount: 1, Reserve: big.NewInt(0)}
		if err := n.manager.HoldingPut(holding); err != nil {
			return err
		}
	}
	return n.manager.SetGenesisApplied()
}

// MarketList creates a listing for the asset at the given price.
func (n *Node) MarketList(seller [20]byte, assetID [32]byte, price uint64) (*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.List(seller, assetID, price)
}

// MarketCancel cancels the caller's listing for the asset.
func (n *Node) MarketCancel(caller [20]byte, assetID [32]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Cancel(caller, assetID)
}

// MarketBuy executes the atomic purchase of the listed asset.
func (n *Node) MarketBuy(buyer, seller [20]byte, assetID [32]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Buy(buyer, seller, assetID)
}

// MarketGet returns the live listing for the asset.
func (n *Node) MarketGet(assetID [32]byte) (*market.Listing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	listing, ok := n.engine.Get(assetID)
	if !ok {
		return nil, market.ErrListingNotFound
	}
	return listing, nil
}

// GetAccount returns the value-ledger account for addr.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.GetAccount(addr[:])
}

// GetHolding returns the holding account for (owner, asset).
func (n *Node) GetHolding(owner [20]byte, assetID [32]byte) (*market.Holding, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.HoldingGet(owner, assetID)
}

// GetAsset returns the registered metadata for the asset.
func (n *Node) GetAsset(assetID [32]byte) (*market.Asset, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.AssetGet(assetID)
}
