package state

import (
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/storage"
)

// Manager mediates all reads and writes of ledger state. Keys are hashed with
// keccak256 before hitting the underlying store and values are RLP encoded.
//
// Manager is not safe for concurrent use; callers serialise access.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided key-value store.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storageKey(prefix []byte, raw []byte) []byte {
	buf := make([]byte, len(prefix)+len(raw))
	copy(buf, prefix)
	copy(buf[len(prefix):], raw)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// GenesisApplied reports whether the genesis document has already been folded
// into this database.
func (m *Manager) GenesisApplied() (bool, error) {
	_, ok, err := m.get(ethcrypto.Keccak256(genesisAppliedKeyBytes))
	return ok, err
}

// SetGenesisApplied marks the database as initialised from genesis.
func (m *Manager) SetGenesisApplied() error {
	return m.db.Put(ethcrypto.Keccak256(genesisAppliedKeyBytes), []byte{0x01})
}
