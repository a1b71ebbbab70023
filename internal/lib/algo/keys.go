package algo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/crypto/ed25519"

	"github.com/stakewell/stakectl/internal/lib/misc"
)

// NewLocalKeyStore loads signing keys from ALGO_MNEMONIC* environment
// variables (which may come from .env files) and signs locally with them.
func NewLocalKeyStore(log *slog.Logger) MultipleWalletSigner {
	keyStore := &localKeyStore{
		log:  log,
		keys: map[string]ed25519.PrivateKey{},
	}
	keyStore.loadFromEnvironment()
	return keyStore
}

type localKeyStore struct {
	log *slog.Logger

	keys map[string]ed25519.PrivateKey
}

func (lk *localKeyStore) HasAccount(publicAddress string) bool {
	_, found := lk.keys[publicAddress]
	return found
}

// FindFirstSigner returns the first address in the passed list we hold keys
// for, or errors if we can sign for none of them.
func (lk *localKeyStore) FindFirstSigner(addresses []string) (string, error) {
	for _, address := range addresses {
		if lk.HasAccount(address) {
			return address, nil
		}
	}
	return "", fmt.Errorf("none of the addresses:%v have local keys present", addresses)
}

func (lk *localKeyStore) SignWithAccount(ctx context.Context, tx types.Transaction, publicAddress string) (string, []byte, error) {
	key, found := lk.keys[publicAddress]
	if !found {
		return "", nil, fmt.Errorf("key not found for address %s", publicAddress)
	}
	return crypto.SignTransaction(key, tx)
}

func (lk *localKeyStore) loadFromEnvironment() {
	var numMnemonics int
	for _, key := range misc.SecretKeys() {
		if !strings.HasPrefix(key, "ALGO_MNEMONIC") {
			continue
		}
		envMnemonic := misc.GetSecret(key)
		if envMnemonic == "" {
			continue
		}
		if err := lk.addMnemonic(envMnemonic); err != nil {
			lk.log.Error(fmt.Sprintf("fatal error in envMnemonic load, idx key:%s, err:%v", key, err))
			os.Exit(1)
		}
		numMnemonics++
	}
	misc.Infof(lk.log, "loaded %d mnemonics", numMnemonics)
}

func (lk *localKeyStore) addMnemonic(mnemonicPhrase string) error {
	key, err := mnemonic.ToPrivateKey(mnemonicPhrase)
	if err != nil {
		return fmt.Errorf("failed to add mnemonic: %w", err)
	}
	account, err := crypto.AccountFromPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to add mnemonic: %w", err)
	}
	lk.keys[account.Address.String()] = key
	misc.Infof(lk.log, "Added data for pk:%s", account.Address.String())
	return nil
}
