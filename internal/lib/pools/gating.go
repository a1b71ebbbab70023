package pools

import (
	"encoding/binary"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// GatingType selects the entry-gating policy of a validator - who may stake
// into its pools.
type GatingType uint8

const (
	GatingTypeNone GatingType = iota
	// GatingTypeAssetsCreatedBy requires holding any asset created by a
	// specific account - the gating value is that account's public key.
	GatingTypeAssetsCreatedBy
	// GatingTypeAssetID requires holding a specific asset id.
	GatingTypeAssetID
	// GatingTypeCreatedByNFDAddresses requires holding an asset created by any
	// account linked to a specific NFD - the gating value is the NFD app id.
	GatingTypeCreatedByNFDAddresses
	// GatingTypeSegmentOfNFD requires owning a segment of a root NFD - the
	// gating value is the root's app id.
	GatingTypeSegmentOfNFD
)

func (g GatingType) String() string {
	switch g {
	case GatingTypeNone:
		return "none"
	case GatingTypeAssetsCreatedBy:
		return "assets created by account"
	case GatingTypeAssetID:
		return "specific asset id"
	case GatingTypeCreatedByNFDAddresses:
		return "assets created by nfd addresses"
	case GatingTypeSegmentOfNFD:
		return "segment of nfd"
	}
	return fmt.Sprintf("unknown gating type:%d", uint8(g))
}

// GatingValue is the decoded form of the polymorphic 32-byte gating value the
// registry contract stores.  Which member is meaningful depends on the
// gating type: an account public key for GatingTypeAssetsCreatedBy, a numeric
// id for the other enabled types.
type GatingValue struct {
	Type    GatingType
	Address types.Address
	ID      uint64
}

// Encode packs the value into the registry's fixed 32-byte representation.
// The contract is the source of truth for this layout - the encoding here has
// to be the exact inverse of the contract's reads or the gating rule is
// silently corrupted with no client-side way to detect it.
func (g GatingValue) Encode() ([32]byte, error) {
	var raw [32]byte
	switch g.Type {
	case GatingTypeNone:
		// zero value - nothing encoded
	case GatingTypeAssetsCreatedBy:
		copy(raw[:], g.Address[:])
	case GatingTypeAssetID, GatingTypeCreatedByNFDAddresses, GatingTypeSegmentOfNFD:
		binary.BigEndian.PutUint64(raw[0:8], g.ID)
	default:
		return raw, fmt.Errorf("can't encode unknown gating type:%d", uint8(g.Type))
	}
	return raw, nil
}

// DecodeGatingValue is the inverse of GatingValue.Encode.
func DecodeGatingValue(gatingType GatingType, raw [32]byte) (GatingValue, error) {
	v := GatingValue{Type: gatingType}
	switch gatingType {
	case GatingTypeNone:
	case GatingTypeAssetsCreatedBy:
		copy(v.Address[:], raw[:])
	case GatingTypeAssetID, GatingTypeCreatedByNFDAddresses, GatingTypeSegmentOfNFD:
		v.ID = binary.BigEndian.Uint64(raw[0:8])
	default:
		return v, fmt.Errorf("can't decode unknown gating type:%d", uint8(gatingType))
	}
	return v, nil
}
