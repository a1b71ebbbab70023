package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stakewell/stakectl/internal/lib/pools"
)

// LocalState is the small amount of per-machine state we persist between
// runs: which validator this machine operates and the on-chain config as of
// the last time we talked to the chain.  Everything else is always re-read
// from the chain.
type LocalState struct {
	ValidatorID uint64
	NodeNum     uint64
	Config      pools.ValidatorConfig
}

func ConfigFilename() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	cfgPath := filepath.Join(cfgDir, "stakewell", "stakectl.json")
	err = os.MkdirAll(filepath.Dir(cfgPath), 0775) // user+group RWX, others RX
	if err != nil {
		return "", fmt.Errorf("error making directory:%s, error:%w", cfgDir, err)
	}
	return cfgPath, nil
}

func LoadLocalState() (*LocalState, error) {
	cfgName, err := ConfigFilename()
	if err != nil {
		return nil, err
	}
	file, err := os.Open(cfgName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var state LocalState
	err = decoder.Decode(&state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// SaveLocalState writes the state via a temp file, replacing the config file
// only if fully written.
func SaveLocalState(state *LocalState) error {
	cfgName, err := ConfigFilename()
	if err != nil {
		return err
	}
	temp, err := os.CreateTemp(filepath.Dir(cfgName), filepath.Base(cfgName)+".*")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(temp)
	err = encoder.Encode(state)
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error saving configuration: %w", err)
	}

	err = temp.Close()
	if err != nil {
		return err
	}

	err = os.Rename(temp.Name(), cfgName)
	if err != nil {
		return err
	}
	slog.Info("state saved", "file", cfgName)
	return nil
}
