package algo

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSuggestedParamsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/transactions/params" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// first attempt fails, as a node still syncing would
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"consensus-version":"future","fee":0,"genesis-hash":%q,"genesis-id":"testnet-v1.0","last-round":100,"min-fee":1000}`,
			base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32)))
	}))
	defer srv.Close()

	client, err := algod.MakeClient(srv.URL, "")
	require.NoError(t, err)

	params, err := SuggestedParams(context.Background(), discardLogger(), client)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "must retry after the first failure")
	assert.True(t, params.FlatFee)
	assert.EqualValues(t, 1000, params.Fee)
	assert.EqualValues(t, 99, params.FirstRoundValid)
	assert.EqualValues(t, 99+DefaultValidRoundRange, params.LastRoundValid)
}

func TestLocalKeyStoreLoadsMnemonics(t *testing.T) {
	account := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	require.NoError(t, err)
	t.Setenv("ALGO_MNEMONIC_UNITTEST", phrase)

	keyStore := NewLocalKeyStore(discardLogger())
	assert.True(t, keyStore.HasAccount(account.Address.String()))

	other := crypto.GenerateAccount()
	signer, err := keyStore.FindFirstSigner([]string{other.Address.String(), account.Address.String()})
	require.NoError(t, err)
	assert.Equal(t, account.Address.String(), signer)

	_, err = keyStore.FindFirstSigner([]string{other.Address.String()})
	assert.Error(t, err)
}
