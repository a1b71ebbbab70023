package pools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakewell/stakectl/internal/lib/algo"
)

// mockNode is a minimal in-process algod stand-in for exercising the
// simulate/execute wire protocol without a real node.  Submissions carrying a
// flat fee below minAcceptFee are rejected the way a fee-metered node would.
type mockNode struct {
	t *testing.T

	mu            sync.Mutex
	simResponse   models.SimulateResponse
	minAcceptFee  types.MicroAlgos
	appJSON       []byte
	accountJSON   []byte
	simulateCalls int
	submitCalls   int
	submittedFees []types.MicroAlgos
}

func (n *mockNode) snapshot() (simulateCalls, submitCalls int, fees []types.MicroAlgos) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.simulateCalls, n.submitCalls, append([]types.MicroAlgos(nil), n.submittedFees...)
}

func newMockNode(t *testing.T) (*mockNode, *algod.Client) {
	node := &mockNode{t: t}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	client, err := algod.MakeClient(srv.URL, "")
	require.NoError(t, err)
	return node, client
}

func (n *mockNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/transactions/simulate":
		n.simulateCalls++
		// the SDK never requests format=msgpack for simulate and decodes
		// the response as JSON
		body, err := json.Marshal(&n.simResponse)
		if err != nil {
			n.t.Errorf("encoding simulate response: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	case r.Method == http.MethodPost && r.URL.Path == "/v2/transactions":
		n.submitCalls++
		body, err := io.ReadAll(r.Body)
		if err != nil {
			n.t.Errorf("reading submitted group: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var stxn types.SignedTxn
		if err := msgpack.Decode(body, &stxn); err != nil {
			n.t.Errorf("decoding submitted txn: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		n.submittedFees = append(n.submittedFees, stxn.Txn.Fee)
		w.Header().Set("Content-Type", "application/json")
		if stxn.Txn.Fee < n.minAcceptFee {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"fee too low"}`))
			return
		}
		_, _ = w.Write([]byte(`{"txId":"MOCKTXID"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/v2/status":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"last-round":1}`))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/transactions/pending/"):
		w.Header().Set("Content-Type", "application/msgpack")
		_, _ = w.Write(msgpack.Encode(&models.PendingTransactionInfoResponse{ConfirmedRound: 1}))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/applications/"):
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(n.appJSON)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/accounts/"):
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(n.accountJSON)
	default:
		n.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func testSuggestedParams() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:             transaction.MinTxnFee,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     bytes.Repeat([]byte{0x42}, 32),
		FirstRoundValid: 1,
		LastRoundValid:  1000,
		FlatFee:         true,
		MinFee:          transaction.MinTxnFee,
	}
}

// paymentGroup builds a single-payment TwoPhaseGroup whose flat fee follows
// the protocol (dry-run padding for fee 0, the passed fee otherwise).
// submitFee lets a test distort the fee actually attached in phase 2; every
// fee passed to Build is appended to buildFees.
func paymentGroup(t *testing.T, extraFlatCalls uint64, buildFees *[]types.MicroAlgos,
	submitFee func(types.MicroAlgos) types.MicroAlgos,
) *TwoPhaseGroup {
	sender := crypto.GenerateAccount()
	return &TwoPhaseGroup{
		ExtraFlatCalls: extraFlatCalls,
		Build: func(fee types.MicroAlgos) (transaction.AtomicTransactionComposer, error) {
			*buildFees = append(*buildFees, fee)
			atc := transaction.AtomicTransactionComposer{}
			params := testSuggestedParams()
			if fee == 0 {
				fee = simulateFeePadding
			} else if submitFee != nil {
				fee = submitFee(fee)
			}
			params.Fee = fee
			paymentTxn, err := transaction.MakePaymentTxn(sender.Address.String(), DummySender.String(), 1000, nil, "", params)
			if err != nil {
				return atc, err
			}
			err = atc.AddTransaction(transaction.TransactionWithSigner{
				Txn:    paymentTxn,
				Signer: algo.SignWithPrivateKeyForATC(sender.PrivateKey),
			})
			return atc, err
		},
	}
}

func TestTwoPhaseGroupSimulationRejected(t *testing.T) {
	node, client := newMockNode(t)
	node.simResponse = models.SimulateResponse{
		TxnGroups: []models.SimulateTransactionGroupResult{
			{FailureMessage: "logic eval error: assert failed"},
		},
	}

	var buildFees []types.MicroAlgos
	group := paymentGroup(t, 0, &buildFees, nil)
	_, err := group.Execute(context.Background(), client)

	var rejected *SimulationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Message, "assert failed")
	assert.Equal(t, PhaseFailed, group.Phase())
	assert.Equal(t, []types.MicroAlgos{0}, buildFees, "must never rebuild after a rejected dry run")
	simulateCalls, submitCalls, _ := node.snapshot()
	assert.Equal(t, 1, simulateCalls)
	assert.Zero(t, submitCalls, "rejected dry run must never reach the real submission")
}

func TestTwoPhaseGroupFeeFromSimulate(t *testing.T) {
	node, client := newMockNode(t)
	node.simResponse = models.SimulateResponse{
		TxnGroups: []models.SimulateTransactionGroupResult{
			{AppBudgetAdded: 1375},
		},
	}
	wantFee := feeForBudget(1375, 2)
	node.minAcceptFee = wantFee

	var buildFees []types.MicroAlgos
	group := paymentGroup(t, 2, &buildFees, nil)
	result, err := group.Execute(context.Background(), client)

	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, group.Phase())
	assert.Equal(t, wantFee, group.Fee())
	assert.Equal(t, []types.MicroAlgos{0, wantFee}, buildFees)
	_, _, submittedFees := node.snapshot()
	require.Equal(t, []types.MicroAlgos{wantFee}, submittedFees)
	assert.Equal(t, uint64(1), result.ConfirmedRound)
}

func TestTwoPhaseGroupUnderpaidFeeRejected(t *testing.T) {
	node, client := newMockNode(t)
	node.simResponse = models.SimulateResponse{
		TxnGroups: []models.SimulateTransactionGroupResult{
			{AppBudgetAdded: 1375},
		},
	}
	node.minAcceptFee = feeForBudget(1375, 0)

	// phase 2 attaches a single min fee instead of the derived one
	var buildFees []types.MicroAlgos
	group := paymentGroup(t, 0, &buildFees, func(types.MicroAlgos) types.MicroAlgos {
		return transaction.MinTxnFee
	})
	_, err := group.Execute(context.Background(), client)

	var failed *ExecutionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, PhaseFailed, group.Phase())
	_, submitCalls, submittedFees := node.snapshot()
	assert.Equal(t, 1, submitCalls)
	require.Equal(t, []types.MicroAlgos{transaction.MinTxnFee}, submittedFees)
}

func TestTwoPhaseGroupFeeFloor(t *testing.T) {
	node, client := newMockNode(t)
	// a logic-level no-op reports zero consumed budget
	node.simResponse = models.SimulateResponse{
		TxnGroups: []models.SimulateTransactionGroupResult{
			{AppBudgetAdded: 0},
		},
	}
	node.minAcceptFee = transaction.MinTxnFee

	var buildFees []types.MicroAlgos
	group := paymentGroup(t, 0, &buildFees, nil)
	_, err := group.Execute(context.Background(), client)

	require.NoError(t, err)
	assert.Equal(t, types.MicroAlgos(transaction.MinTxnFee), group.Fee())
	assert.Equal(t, []types.MicroAlgos{0, transaction.MinTxnFee}, buildFees,
		"phase 2 must rebuild with a real min fee, not the dry-run sentinel")
}

func TestGetPoolID(t *testing.T) {
	node, client := newMockNode(t)
	appJSON, err := json.Marshal(models.Application{
		Id: 2002,
		Params: models.ApplicationParams{
			GlobalState: []models.TealKeyValue{
				{
					Key:   base64.StdEncoding.EncodeToString([]byte(StakePoolPoolID)),
					Value: models.TealValue{Type: 2, Uint: 4},
				},
			},
		},
	})
	require.NoError(t, err)
	node.appJSON = appJSON

	c := &Client{algoClient: client, RegistryAppID: 1001}
	poolID, err := c.GetPoolID(context.Background(), 2002)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), poolID)
}

func TestPoolBalance(t *testing.T) {
	node, client := newMockNode(t)
	c := &Client{algoClient: client, RegistryAppID: 1001}
	node.accountJSON = []byte(fmt.Sprintf(`{"address":%q,"amount":5000000,"min-balance":250000}`,
		c.PoolAddress(2002).String()))

	balance, err := c.PoolBalance(context.Background(), 2002)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_750_000), balance)
}
