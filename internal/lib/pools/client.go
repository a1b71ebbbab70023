// Package pools is the client-side orchestration layer for the Stakewell
// staking protocol: a master pool registry contract plus per-pool staking
// contract instances.  Reads are performed as signature-free simulations,
// writes run through an explicit simulate-then-execute protocol that derives
// the real fee from the dry run's consumed app budget.
package pools

import (
	"embed"
	"encoding/json"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/stakewell/stakectl/internal/lib/algo"
	"github.com/stakewell/stakectl/internal/lib/misc"
)

type Client struct {
	Logger     *slog.Logger
	algoClient *algod.Client
	signer     algo.MultipleWalletSigner

	// RegistryAppID is the master pool registry contract id
	RegistryAppID uint64

	registryContract *abi.Contract
	poolContract     *abi.Contract
}

func New(
	registryAppID uint64,
	logger *slog.Logger,
	algoClient *algod.Client,
	signer algo.MultipleWalletSigner,
) (*Client, error) {
	c := &Client{
		Logger:        logger,
		algoClient:    algoClient,
		signer:        signer,
		RegistryAppID: registryAppID,
	}
	registryContract, err := loadContract("artifacts/contracts/PoolRegistry.arc32.json")
	if err != nil {
		return nil, err
	}
	poolContract, err := loadContract("artifacts/contracts/StakingPool.arc32.json")
	if err != nil {
		return nil, err
	}
	c.registryContract = registryContract
	c.poolContract = poolContract

	misc.Infof(logger, "client initialized, Registry App ID:%d", registryAppID)
	return c, nil
}

// RegistryAddress is the registry contract's escrow account, the destination
// of every MBR and stake payment.
func (c *Client) RegistryAddress() types.Address {
	return crypto.GetApplicationAddress(c.RegistryAppID)
}

// PoolAddress is a pool contract's escrow account, where that pool's stake
// actually lives.
func (c *Client) PoolAddress(poolAppID uint64) types.Address {
	return crypto.GetApplicationAddress(poolAppID)
}

//go:embed artifacts/contracts/PoolRegistry.arc32.json
//go:embed artifacts/contracts/StakingPool.arc32.json
var embeddedF embed.FS

func loadContract(fname string) (*abi.Contract, error) {
	data, err := embeddedF.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	return loadContractFromArc32(data)
}

// abiContractWrap exists just so we can unmarshal an arc32 document into the
// abi.Contract type - everything else in the arc32 is ignored.
type abiContractWrap struct {
	Contract abi.Contract `json:"contract"`
}

func loadContractFromArc32(arc32 []byte) (*abi.Contract, error) {
	var contractWrap abiContractWrap
	err := json.Unmarshal(arc32, &contractWrap)
	if err != nil {
		return nil, err
	}
	return &contractWrap.Contract, nil
}
