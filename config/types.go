package config

// Tiers configures the reward tier formula.
type Tiers struct {
	// Scale multiplies the pool/balance ratio before it becomes a unit count.
	Scale       uint64 `toml:"Scale" yaml:"scale"`
	MaxTier     uint8  `toml:"MaxTier" yaml:"maxTier"`
	UnitSeconds uint64 `toml:"UnitSeconds" yaml:"unitSeconds"`
}

// Allocation credits a genesis balance of the deposit asset. Address is a
// bech32 string with the stk prefix and Amount a base-10 integer.
type Allocation struct {
	Address string `toml:"Address" yaml:"address"`
	Amount  string `toml:"Amount" yaml:"amount"`
}

type Log struct {
	Env        string `toml:"Env" yaml:"env"`
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB,omitempty" yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `toml:"MaxBackups,omitempty" yaml:"maxBackups,omitempty"`
}

// Telemetry configures OTLP export. Headers uses the key=value,key=value form.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers,omitempty" yaml:"headers,omitempty"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
}
