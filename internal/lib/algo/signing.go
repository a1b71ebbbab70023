package algo

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/crypto/ed25519"
)

// MultipleWalletSigner can sign for any number of accounts it holds keys for.
type MultipleWalletSigner interface {
	HasAccount(publicAddress string) bool
	FindFirstSigner(addresses []string) (string, error)
	SignWithAccount(ctx context.Context, tx types.Transaction, publicAddress string) (string, []byte, error)
}

// SignWithAccountForATC adapts a MultipleWalletSigner for use as an ATC TransactionSigner
// for a specific sending account.
func SignWithAccountForATC(keyManager MultipleWalletSigner, publicAddress string) transaction.TransactionSigner {
	return &keystoreSigner{
		keyManager: keyManager,
		address:    publicAddress,
	}
}

type keystoreSigner struct {
	keyManager MultipleWalletSigner
	address    string
}

func (k *keystoreSigner) SignTransactions(txGroup []types.Transaction, indexesToSign []int) ([][]byte, error) {
	stxs := make([][]byte, len(indexesToSign))
	for i, pos := range indexesToSign {
		_, stxBytes, err := k.keyManager.SignWithAccount(context.Background(), txGroup[pos], k.address)
		if err != nil {
			return nil, err
		}
		stxs[i] = stxBytes
	}
	return stxs, nil
}

func (k *keystoreSigner) Equals(other transaction.TransactionSigner) bool {
	if castedSigner, ok := other.(*keystoreSigner); ok {
		return castedSigner.address == k.address
	}
	return false
}

// skSigner signs with a raw ed25519 key - handy for tests and one-off tooling.
type skSigner struct {
	sk ed25519.PrivateKey
}

func (s *skSigner) SignTransactions(txGroup []types.Transaction, indexesToSign []int) ([][]byte, error) {
	stxs := make([][]byte, len(indexesToSign))
	for i, pos := range indexesToSign {
		_, stxBytes, err := crypto.SignTransaction(s.sk, txGroup[pos])
		if err != nil {
			return nil, err
		}
		stxs[i] = stxBytes
	}
	return stxs, nil
}

func (s *skSigner) Equals(other transaction.TransactionSigner) bool {
	_, ok := other.(*skSigner)
	return ok
}

func SignWithPrivateKeyForATC(privateKey ed25519.PrivateKey) transaction.TransactionSigner {
	return &skSigner{sk: privateKey}
}
