package pools

import (
	"encoding/binary"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerRecord(account types.Address, balance, rewarded, tokenBal, entryTime uint64) []byte {
	data := make([]byte, stakedInfoSize)
	copy(data[0:32], account[:])
	binary.BigEndian.PutUint64(data[32:40], balance)
	binary.BigEndian.PutUint64(data[40:48], rewarded)
	binary.BigEndian.PutUint64(data[48:56], tokenBal)
	binary.BigEndian.PutUint64(data[56:64], entryTime)
	return data
}

func TestDecodeStakedInfo(t *testing.T) {
	addr, err := types.DecodeAddress("DUMMYE34NWB6LZ6QGVLHE6N43M6TN65VRBI4LSITTEIHCF4ILVMRCB42ZE")
	require.NoError(t, err)

	info, err := decodeStakedInfo(ledgerRecord(addr, 5_000_000, 123, 7, 1_700_000_000))
	require.NoError(t, err)
	assert.Equal(t, addr, info.Account)
	assert.Equal(t, uint64(5_000_000), info.Balance)
	assert.Equal(t, uint64(123), info.TotalRewarded)
	assert.Equal(t, uint64(7), info.RewardTokenBalance)
	assert.Equal(t, uint64(1_700_000_000), info.EntryTime)
}

func TestDecodeStakedInfoWrongSize(t *testing.T) {
	_, err := decodeStakedInfo(make([]byte, 63))
	assert.Error(t, err)
	_, err = decodeStakedInfo(make([]byte, 65))
	assert.Error(t, err)
}

func TestBoxNames(t *testing.T) {
	name := GetValidatorListBoxName(0x0102)
	require.Len(t, name, 9)
	assert.Equal(t, byte('v'), name[0])
	assert.Equal(t, uint64(0x0102), binary.BigEndian.Uint64(name[1:9]))

	addr, err := types.DecodeAddress("DUMMYE34NWB6LZ6QGVLHE6N43M6TN65VRBI4LSITTEIHCF4ILVMRCB42ZE")
	require.NoError(t, err)
	name = GetStakerPoolSetBoxName(addr)
	require.Len(t, name, 35)
	assert.Equal(t, []byte("sps"), name[0:3])
	assert.Equal(t, addr[:], name[3:35])

	assert.Equal(t, []byte("stakers"), GetStakerLedgerBoxName())
}
