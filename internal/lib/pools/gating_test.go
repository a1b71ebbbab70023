package pools

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatingValueRoundTrip(t *testing.T) {
	addr, err := types.DecodeAddress("DUMMYE34NWB6LZ6QGVLHE6N43M6TN65VRBI4LSITTEIHCF4ILVMRCB42ZE")
	require.NoError(t, err)

	testCases := []struct {
		name  string
		value GatingValue
	}{
		{"none", GatingValue{Type: GatingTypeNone}},
		{"creator address", GatingValue{Type: GatingTypeAssetsCreatedBy, Address: addr}},
		{"asset id", GatingValue{Type: GatingTypeAssetID, ID: 12345}},
		{"asset id with high bit", GatingValue{Type: GatingTypeAssetID, ID: 1 << 63}},
		{"nfd app id", GatingValue{Type: GatingTypeCreatedByNFDAddresses, ID: 2291}},
		{"segment root nfd", GatingValue{Type: GatingTypeSegmentOfNFD, ID: 1}},
		{"numeric zero", GatingValue{Type: GatingTypeAssetID, ID: 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := tc.value.Encode()
			require.NoError(t, err)
			decoded, err := DecodeGatingValue(tc.value.Type, raw)
			require.NoError(t, err)
			assert.Equal(t, tc.value, decoded)
		})
	}
}

func TestGatingValueEncoding(t *testing.T) {
	// numeric ids occupy the first 8 bytes big-endian, rest must be zero
	raw, err := GatingValue{Type: GatingTypeAssetID, ID: 0x0102030405060708}.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, raw[0:8])
	assert.Equal(t, make([]byte, 24), raw[8:32])

	// the none variant is all zeros
	raw, err = GatingValue{Type: GatingTypeNone}.Encode()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 32), raw[:])

	// address variant is the raw 32-byte public key
	addr, err := types.DecodeAddress("DUMMYE34NWB6LZ6QGVLHE6N43M6TN65VRBI4LSITTEIHCF4ILVMRCB42ZE")
	require.NoError(t, err)
	raw, err = GatingValue{Type: GatingTypeAssetsCreatedBy, Address: addr}.Encode()
	require.NoError(t, err)
	assert.Equal(t, addr[:], raw[:])
}

func TestGatingValueUnknownType(t *testing.T) {
	_, err := GatingValue{Type: GatingType(99)}.Encode()
	assert.Error(t, err)

	var raw [32]byte
	_, err = DecodeGatingValue(GatingType(99), raw)
	assert.Error(t, err)
}
