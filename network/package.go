package network

// Package is a single network message.
type Package struct {
	// IsHotfixPackage routes the package through the channel used for
	// patchable script content instead of the core protocol.
	IsHotfixPackage bool
	MsgID           int32
	BodyBytes       []byte
}
