package market

import "testing"

func TestDeriveListingAddressDeterministic(t *testing.T) {
	assetID := newTestAsset(0x7C)
	addr1, bump1 := DeriveListingAddress(assetID)
	addr2, bump2 := DeriveListingAddress(assetID)
	if addr1 != addr2 || bump1 != bump2 {
		t.Fatalf("derivation not deterministic: (%x,%d) vs (%x,%d)", addr1, bump1, addr2, bump2)
	}
	if addr1 == ([20]byte{}) {
		t.Fatal("derived address must not be the zero address")
	}
}

func TestDeriveListingAddressDistinctPerAsset(t *testing.T) {
	addrA, _ := DeriveListingAddress(newTestAsset(0x01))
	addrB, _ := DeriveListingAddress(newTestAsset(0x02))
	if addrA == addrB {
		t.Fatalf("distinct assets derived the same address %x", addrA)
	}
}

func TestVerifyListingAuthority(t *testing.T) {
	assetID := newTestAsset(0x7C)
	addr, bump := DeriveListingAddress(assetID)

	if !VerifyListingAuthority(assetID, bump, addr) {
		t.Fatal("canonical witness must verify")
	}
	if VerifyListingAuthority(assetID, bump-1, addr) {
		t.Fatal("wrong bump must not verify")
	}
	if VerifyListingAuthority(newTestAsset(0x7D), bump, addr) {
		t.Fatal("wrong asset must not verify")
	}
	if VerifyListingAuthority(assetID, bump, newTestAddress(0xFF)) {
		t.Fatal("wrong address must not verify")
	}
	if VerifyListingAuthority(assetID, bump, [20]byte{}) {
		t.Fatal("zero address must never verify")
	}
}
