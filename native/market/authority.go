package market

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

// listingTag seeds the derivation of listing record addresses. Changing it
// invalidates every stored witness.
const listingTag = "market/listing"

func listingCandidate(assetID [32]byte, bump uint8) [20]byte {
	hash := ethcrypto.Keccak256([]byte(listingTag), assetID[:], []byte{bump})
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// DeriveListingAddress deterministically derives the listing record address
// for an asset together with the bump witness that produced it. The search
// starts at 255 and accepts the first candidate outside the reserved zero
// address, so re-deriving from (asset, bump) never requires the search again.
func DeriveListingAddress(assetID [32]byte) ([20]byte, uint8) {
	for i := 255; i >= 0; i-- {
		bump := uint8(i)
		addr := listingCandidate(assetID, bump)
		if addr != ([20]byte{}) {
			return addr, bump
		}
	}
	return [20]byte{}, 0
}

// VerifyListingAuthority reports whether addr is the record address derived
// from (asset, bump). Custody may only be moved by a record whose address
// verifies against its stored witness; authority is proven structurally, not
// cryptographically.
func VerifyListingAuthority(assetID [32]byte, bump uint8, addr [20]byte) bool {
	if addr == ([20]byte{}) {
		return false
	}
	return listingCandidate(assetID, bump) == addr
}
