package ir

// Version constants reported with every load.
const (
	// SchemaVersion is the version of the seed table layout.
	SchemaVersion = "1"

	// LoaderVersion is the genesis loader version.
	LoaderVersion = "0.1.0"
)
