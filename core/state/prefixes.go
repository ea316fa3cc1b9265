package state

var (
	accountPrefix = []byte("market/account/")
	assetPrefix   = []byte("market/asset/")
	holdingPrefix = []byte("market/holding/")
	listingPrefix = []byte("market/record/")

	genesisAppliedKeyBytes = []byte("market/genesis/applied")
)
