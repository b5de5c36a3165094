// Package block defines the on-chain data model: filerefs, blocks,
// blockrefs, actions and transactions, plus the canonical JSON codec
// their hashes and signatures are computed over.
package block

// Magic numbers and version, identifying the wire format the way a file
// format's magic number identifies its contents. Values match the
// original pyomcore implementation so tooling built against either
// stays byte-compatible on the fields that travel between them.
const (
	VersionNumber = 1

	FilerefMagic     = "4885be82-7524-11ec-997c-f3c69ad4da31"
	BlockMagic       = "bc1ae75a-7137-11ec-ab3c-2b53f48d31de"
	BlockrefMagic    = "25a4e584-a916-11ec-99f3-bf52559e61a8"
	TransactionMagic = "89371ff4-8c0b-11ec-af4e-8f95f2c69a61"
)

// Directory and file naming conventions for the on-disk layout. store/
// is the only package that should need these, but they live here next
// to the magic numbers they're paired with in the original layout.
const (
	BlockchainDirname        = "blockchain"
	TransactionsDirname      = "transactions"
	ConfirmationsDirname     = "confirmations"
	CancellationsDirname     = "cancellations"
	ExtraConnectionsDirname  = "extra_connections"
	BannedDirname            = "banned"
	GnupgDirname             = "gnupg"
	SmartContractsDirname    = "smart_contracts"
	Block0PubkeyFilename     = "public.key"
	SmartContractUUIDFilename = "pyom_smart_contract_uuid.txt"

	BlockExtJSON = ".json"
	BlockExtRef  = ".ref.json"
	BlockExtSig  = ".ref.json.sig"
)
