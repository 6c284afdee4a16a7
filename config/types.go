package config

// TokenConfig describes the token registered at genesis.
type TokenConfig struct {
	Symbol   string `toml:"Symbol" yaml:"Symbol"`
	Name     string `toml:"Name" yaml:"Name"`
	Decimals uint8  `toml:"Decimals" yaml:"Decimals"`
	// InitialSupply is a base-10 integer in base units.
	InitialSupply    string `toml:"InitialSupply" yaml:"InitialSupply"`
	Treasury         string `toml:"Treasury" yaml:"Treasury"`
	TreasuryKeystore string `toml:"TreasuryKeystore,omitempty" yaml:"TreasuryKeystore,omitempty"`
	// Custody overrides the principal holding campaign funds.
	Custody string `toml:"Custody,omitempty" yaml:"Custody,omitempty"`
}

// LogConfig controls structured logging and file rotation.
type LogConfig struct {
	Level      string `toml:"Level" yaml:"Level"`
	File       string `toml:"File,omitempty" yaml:"File,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"MaxAgeDays"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `toml:"Endpoint,omitempty" yaml:"Endpoint,omitempty"`
	Insecure    bool    `toml:"Insecure" yaml:"Insecure"`
	Traces      bool    `toml:"Traces" yaml:"Traces"`
	Metrics     bool    `toml:"Metrics" yaml:"Metrics"`
	Headers     string  `toml:"Headers,omitempty" yaml:"Headers,omitempty"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"SampleRatio"`
}

// AuthConfig controls bearer token verification on the RPC server. Tokens
// are HS256 JWTs whose subject is the caller's principal.
type AuthConfig struct {
	HMACSecret          string `toml:"HMACSecret" yaml:"HMACSecret"`
	Issuer              string `toml:"Issuer,omitempty" yaml:"Issuer,omitempty"`
	Audience            string `toml:"Audience,omitempty" yaml:"Audience,omitempty"`
	AllowAnonymousReads bool   `toml:"AllowAnonymousReads" yaml:"AllowAnonymousReads"`
	TokenTTLSeconds     int64  `toml:"TokenTTLSeconds" yaml:"TokenTTLSeconds"`
}

// RateLimitConfig bounds requests per client IP. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `toml:"RequestsPerMinute" yaml:"RequestsPerMinute"`
	Burst             int `toml:"Burst" yaml:"Burst"`
}

// IndexerConfig controls the event index. An empty DSN uses a sqlite file in
// the data directory; postgres:// DSNs select PostgreSQL.
type IndexerConfig struct {
	Enabled bool   `toml:"Enabled" yaml:"Enabled"`
	DSN     string `toml:"DSN,omitempty" yaml:"DSN,omitempty"`
	Buffer  int    `toml:"Buffer" yaml:"Buffer"`
}

// DevConfig enables helpers meant for local networks and test harnesses.
type DevConfig struct {
	ManualClock bool  `toml:"ManualClock" yaml:"ManualClock"`
	StartTime   int64 `toml:"StartTime,omitempty" yaml:"StartTime,omitempty"`
	AllowMint   bool  `toml:"AllowMint" yaml:"AllowMint"`
}
