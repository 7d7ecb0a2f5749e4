package network

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

type frame struct {
	Hotfix bool   `cbor:"1,keyasint,omitempty"`
	MsgID  int32  `cbor:"2,keyasint"`
	Body   []byte `cbor:"3,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("network: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Encode serializes a package into a wire frame.
func Encode(p Package) ([]byte, error) {
	return cborEncMode.Marshal(frame{
		Hotfix: p.IsHotfixPackage,
		MsgID:  p.MsgID,
		Body:   p.BodyBytes,
	})
}

// Decode parses a wire frame.
func Decode(data []byte) (Package, error) {
	var f frame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return Package{}, fmt.Errorf("network: decode frame: %w", err)
	}
	return Package{
		IsHotfixPackage: f.Hotfix,
		MsgID:           f.MsgID,
		BodyBytes:       f.Body,
	}, nil
}
