package config

import (
	"fmt"
	"math/big"
	"strings"

	"raisemoney/core/types"
	"raisemoney/observability/logging"
	"raisemoney/storage"
)

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage)) {
	case storage.BackendLevelDB, storage.BackendBolt:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("DataDir must be set for %s storage", c.Storage)
		}
	case storage.BackendMemory:
	default:
		return fmt.Errorf("unknown Storage %q", c.Storage)
	}
	supply, err := c.InitialSupplyAmount()
	if err != nil {
		return err
	}
	if supply.Sign() > 0 {
		if _, err := c.TreasuryPrincipal(); err != nil {
			return fmt.Errorf("Token.Treasury: %w", err)
		}
	}
	if strings.TrimSpace(c.Token.Custody) != "" {
		if _, err := types.ParsePrincipal(c.Token.Custody); err != nil {
			return fmt.Errorf("Token.Custody: %w", err)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if len(strings.TrimSpace(c.Auth.HMACSecret)) < 16 {
		return fmt.Errorf("Auth.HMACSecret must be at least 16 characters")
	}
	if c.Auth.TokenTTLSeconds < 0 {
		return fmt.Errorf("Auth.TokenTTLSeconds must not be negative")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("RateLimit values must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("Telemetry.SampleRatio must be within [0,1]")
	}
	if c.Indexer.Buffer < 0 {
		return fmt.Errorf("Indexer.Buffer must not be negative")
	}
	return nil
}

// InitialSupplyAmount parses the genesis supply. An empty value means zero.
func (c *Config) InitialSupplyAmount() (*big.Int, error) {
	return parseUintAmount(c.Token.InitialSupply)
}

// TreasuryPrincipal decodes the treasury address.
func (c *Config) TreasuryPrincipal() (types.Principal, error) {
	return types.ParsePrincipal(c.Token.Treasury)
}

// CustodyPrincipal decodes the custody override; the zero principal means the
// node default.
func (c *Config) CustodyPrincipal() (types.Principal, error) {
	if strings.TrimSpace(c.Token.Custody) == "" {
		return types.ZeroPrincipal, nil
	}
	return types.ParsePrincipal(c.Token.Custody)
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, "_", ""))
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return value, nil
}
