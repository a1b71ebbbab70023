package pools

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
)

func TestFeeForBudget(t *testing.T) {
	testCases := []struct {
		name           string
		budgetConsumed uint64
		extraFlatCalls uint64
		expected       uint64
	}{
		{"zero budget", 0, 0, 0},
		{"one opcode still pays a full txn fee", 1, 0, transaction.MinTxnFee},
		{"exactly one txn of budget", 700, 0, transaction.MinTxnFee},
		{"one over rounds up", 701, 0, 2 * transaction.MinTxnFee},
		{"just under two txns", 1399, 0, 2 * transaction.MinTxnFee},
		{"exactly two txns", 1400, 0, 2 * transaction.MinTxnFee},
		{"typical stake group", 1850, 2, 3*transaction.MinTxnFee + 2*transaction.MinTxnFee},
		{"flat calls only", 0, 2, 2 * transaction.MinTxnFee},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, types.MicroAlgos(tc.expected), feeForBudget(tc.budgetConsumed, tc.extraFlatCalls))
		})
	}
}

// The computed fee must always cover the consumed budget - rounding can only
// ever work in the network's favor.
func TestFeeForBudgetCoversBudget(t *testing.T) {
	for budget := uint64(1); budget < 5_000; budget += 137 {
		fee := feeForBudget(budget, 0)
		paidForBudget := uint64(fee) / transaction.MinTxnFee * appBudgetPerTxnFee
		assert.GreaterOrEqual(t, paidForBudget, budget, "budget:%d", budget)
	}
}

func TestTwoPhaseGroupPhases(t *testing.T) {
	g := &TwoPhaseGroup{}
	assert.Equal(t, PhaseBuilt, g.Phase())
	assert.Equal(t, types.MicroAlgos(0), g.Fee())
}
