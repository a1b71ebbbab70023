package algo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stakewell/stakectl/internal/lib/misc"
)

type NetworkConfig struct {
	NFDAPIUrl string

	NodeURL     string
	NodeToken   string
	NodeHeaders map[string]string

	// RegistryAppID is the application id of the master pool registry contract
	RegistryAppID uint64
}

func (n NetworkConfig) String() string {
	return fmt.Sprintf("NFDAPIUrl: %s, NodeURL: %s, NodeToken: (length:%d), NodeHeaders: %v, RegistryAppID: %d",
		n.NFDAPIUrl, n.NodeURL, len(n.NodeToken), n.NodeHeaders, n.RegistryAppID)
}

// GetNetworkConfig returns the defaults for the given network, overridden by
// any ALGO_* environment settings.
func GetNetworkConfig(network string) NetworkConfig {
	cfg := getDefaults(network)

	if nfdAPIUrl := misc.GetSecret("ALGO_NFD_URL"); nfdAPIUrl != "" {
		cfg.NFDAPIUrl = nfdAPIUrl
	}
	if appIDEnv := misc.GetSecret("STAKEWELL_APPID"); appIDEnv != "" {
		cfg.RegistryAppID, _ = strconv.ParseUint(appIDEnv, 10, 64)
	}
	if nodeURL := misc.GetSecret("ALGO_ALGOD_URL"); nodeURL != "" {
		cfg.NodeURL = nodeURL
	}
	if nodeToken := misc.GetSecret("ALGO_ALGOD_TOKEN"); nodeToken != "" {
		cfg.NodeToken = nodeToken
	}
	// parse headers from key:value,[key:value...] pairs
	cfg.NodeHeaders = map[string]string{}
	for _, header := range strings.Split(misc.GetSecret("ALGO_ALGOD_HEADERS"), ",") {
		parts := strings.SplitN(header, ":", 2) // just split on first : - values can have :'s
		if len(parts) == 2 {
			cfg.NodeHeaders[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cfg
}

func getDefaults(network string) NetworkConfig {
	cfg := NetworkConfig{}
	switch network {
	case "mainnet":
		cfg.RegistryAppID = 0 // set via STAKEWELL_APPID until mainnet deploy is final
		cfg.NFDAPIUrl = "https://api.nf.domains"
		cfg.NodeURL = "https://mainnet-api.algonode.cloud"
	case "testnet":
		cfg.RegistryAppID = 673404372
		cfg.NFDAPIUrl = "https://api.testnet.nf.domains"
		cfg.NodeURL = "https://testnet-api.algonode.cloud"
	case "betanet":
		cfg.RegistryAppID = 2019373722
		cfg.NFDAPIUrl = "https://api.betanet.nf.domains"
		cfg.NodeURL = "https://betanet-api.algonode.cloud"
	case "sandbox":
		cfg.RegistryAppID = 0 // should come from .env.sandbox !!
		cfg.NFDAPIUrl = "https://api.testnet.nf.domains"
		cfg.NodeURL = "http://localhost:4001"
		cfg.NodeToken = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	}
	return cfg
}
