package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"raisemoney/crypto"
)

// Environment variables that override file values.
const (
	EnvRPCAddress = "RAISE_RPC_ADDR"
	EnvAuthSecret = "RAISE_AUTH_SECRET"
	EnvDataDir    = "RAISE_DATA_DIR"
)

type Config struct {
	RPCAddress string          `toml:"RPCAddress" yaml:"RPCAddress"`
	DataDir    string          `toml:"DataDir" yaml:"DataDir"`
	Storage    string          `toml:"Storage" yaml:"Storage"`
	Token      TokenConfig     `toml:"Token" yaml:"Token"`
	Log        LogConfig       `toml:"Log" yaml:"Log"`
	Telemetry  TelemetryConfig `toml:"Telemetry" yaml:"Telemetry"`
	Auth       AuthConfig      `toml:"Auth" yaml:"Auth"`
	RateLimit  RateLimitConfig `toml:"RateLimit" yaml:"RateLimit"`
	Indexer    IndexerConfig   `toml:"Indexer" yaml:"Indexer"`
	Dev        DevConfig       `toml:"Dev" yaml:"Dev"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load loads the configuration from the given path. A default configuration,
// including a freshly generated treasury keystore and auth secret, is written
// when the file does not exist. Files ending in .yaml or .yml are decoded as
// YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if err := decode(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, cfg *Config) error {
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(raw, cfg)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./raise-data"
	}
	if strings.TrimSpace(c.Storage) == "" {
		c.Storage = "leveldb"
	}
	if strings.TrimSpace(c.Token.Symbol) == "" {
		c.Token.Symbol = "MOBI"
	}
	if strings.TrimSpace(c.Token.Name) == "" {
		c.Token.Name = "MobiCoin"
	}
	if c.RateLimit.Burst == 0 && c.RateLimit.RequestsPerMinute > 0 {
		c.RateLimit.Burst = c.RateLimit.RequestsPerMinute / 6
		if c.RateLimit.Burst == 0 {
			c.RateLimit.Burst = 1
		}
	}
	if c.Indexer.Buffer == 0 {
		c.Indexer.Buffer = 256
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvRPCAddress)); v != "" {
		c.RPCAddress = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthSecret)); v != "" {
		c.Auth.HMACSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		c.DataDir = v
	}
}

// IndexerDSN returns the configured DSN or a sqlite file inside DataDir.
func (c *Config) IndexerDSN() string {
	if dsn := strings.TrimSpace(c.Indexer.DSN); dsn != "" {
		return dsn
	}
	return filepath.Join(c.DataDir, "events.db")
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress: ":8080",
		DataDir:    "./raise-data",
		Storage:    "leveldb",
		Token: TokenConfig{
			Symbol:           "MOBI",
			Name:             "MobiCoin",
			Decimals:         18,
			InitialSupply:    "1000000000000000000000000",
			Treasury:         key.PubKey().Address().String(),
			TreasuryKeystore: keystorePath,
		},
		Log: LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Auth: AuthConfig{
			HMACSecret:          secret,
			Issuer:              "raisemoneyd",
			AllowAnonymousReads: true,
			TokenTTLSeconds:     3600,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600, Burst: 100},
		Indexer:   IndexerConfig{Enabled: true, Buffer: 256},
		Dev:       DevConfig{ManualClock: true, AllowMint: true},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "treasury.keystore")
}
