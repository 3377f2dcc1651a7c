package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// hardhatArtifact is the subset of a Hardhat/Foundry build artifact this
// package cares about: the compiled ABI fragment.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABIFromHardhatArtifact loads a contract ABI out of a Hardhat-style
// build artifact JSON file, or a bare ABI JSON array if the "abi" wrapper
// key is absent.
func LoadABIFromHardhatArtifact(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi artifact %s: %w", path, err)
	}

	var artifact hardhatArtifact
	if err := json.Unmarshal(data, &artifact); err == nil && len(artifact.ABI) > 0 {
		parsed, err := abi.JSON(bytes.NewReader(artifact.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("parse abi fragment of %s: %w", path, err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse raw abi %s: %w", path, err)
	}
	return parsed, nil
}
