package genesis

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"

	"nftmarket/crypto"
)

// Account seeds a funded value-ledger account.
type Account struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

// Asset seeds a registered single-edition asset held by Holder. Decimals and
// supply are fixed by the single-edition shape; authorities are revoked.
type Asset struct {
	ID     string `toml:"ID"`
	Holder string `toml:"Holder"`
}

// Genesis is the TOML document folded into an empty database on first start.
type Genesis struct {
	NetworkName string    `toml:"NetworkName"`
	Accounts    []Account `toml:"account"`
	Assets      []Asset   `toml:"asset"`
}

// Load reads and validates a genesis document from path.
func Load(path string) (*Genesis, error) {
	g := &Genesis{}
	if _, err := toml.DecodeFile(path, g); err != nil {
		return nil, fmt.Errorf("genesis: decode %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks that every entry decodes cleanly.
func (g *Genesis) Validate() error {
	if g == nil {
		return fmt.Errorf("genesis: nil document")
	}
	for i, account := range g.Accounts {
		if _, _, err := account.Decode(); err != nil {
			return fmt.Errorf("genesis: account %d: %w", i, err)
		}
	}
	for i, asset := range g.Assets {
		if _, _, err := asset.Decode(); err != nil {
			return fmt.Errorf("genesis: asset %d: %w", i, err)
		}
	}
	return nil
}

// Decode parses the bech32 address and decimal balance.
func (a Account) Decode() ([20]byte, *big.Int, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(a.Address))
	if err != nil {
		return [20]byte{}, nil, err
	}
	balance, ok := new(big.Int).SetString(strings.TrimSpace(a.Balance), 10)
	if !ok || balance.Sign() < 0 {
		return [20]byte{}, nil, fmt.Errorf("invalid balance %q", a.Balance)
	}
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out, balance, nil
}

// Decode parses the 32-byte hex asset identifier and bech32 holder address.
func (a Asset) Decode() ([32]byte, [20]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(a.ID), "0x"))
	if err != nil {
		return [32]byte{}, [20]byte{}, fmt.Errorf("invalid asset id: %w", err)
	}
	if len(raw) != 32 {
		return [32]byte{}, [20]byte{}, fmt.Errorf("asset id must be 32 bytes, got %d", len(raw))
	}
	holder, err := crypto.DecodeAddress(strings.TrimSpace(a.Holder))
	if err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	var id [32]byte
	copy(id[:], raw)
	var out [20]byte
	copy(out[:], holder.Bytes())
	return id, out, nil
}
