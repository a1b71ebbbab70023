package pools

import (
	"bytes"
	"encoding/binary"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

const (
	MaxNodes        = 12
	MaxPoolsPerNode = 6

	// Global state keys in the pool registry contract
	RegistryNumValidators = "numV"

	// Global state keys in the staking pool contract
	StakePoolCreatorApp  = "creatorApp"
	StakePoolValidatorID = "validatorID"
	StakePoolPoolID      = "poolID"
	StakePoolNumStakers  = "numStakers"
	StakePoolStaked      = "staked"
)

// DummySender is used as sender for read-only simulate calls - nothing is
// signed but the sender still has to be a valid address.
var DummySender, _ = types.DecodeAddress("DUMMYE34NWB6LZ6QGVLHE6N43M6TN65VRBI4LSITTEIHCF4ILVMRCB42ZE")

func GetValidatorListBoxName(id uint64) []byte {
	prefix := []byte("v")
	ibytes := make([]byte, 8)
	binary.BigEndian.PutUint64(ibytes, id)
	return bytes.Join([][]byte{prefix, ibytes[:]}, nil)
}

func GetStakerPoolSetBoxName(stakerAccount types.Address) []byte {
	return bytes.Join([][]byte{[]byte("sps"), stakerAccount[:]}, nil)
}

func GetStakerLedgerBoxName() []byte {
	return []byte("stakers")
}
