package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"giftledger/native/fees"
	"giftledger/native/treasury"
)

// Config is the top-level daemon configuration.
type Config struct {
	Ledger     LedgerConfig     `toml:"Ledger"`
	Commission CommissionConfig `toml:"Commission"`
	Refund     RefundConfig     `toml:"Refund"`
	Oracle     OracleConfig     `toml:"Oracle"`
	Treasury   TreasuryConfig   `toml:"Treasury"`
	RPC        RPCConfig        `toml:"RPC"`
	Storage    StorageConfig    `toml:"Storage"`
}

// LedgerConfig identifies the ledger instance and its fixed collaborators.
type LedgerConfig struct {
	InstanceID  string `toml:"InstanceID"`
	RewardAsset string `toml:"RewardAsset"`
	Treasury    string `toml:"Treasury"`
}

// CommissionConfig models the four-tier table. Thresholds are 18-decimal
// USD values in decimal string form.
type CommissionConfig struct {
	Thresholds []string `toml:"Thresholds"`
	FullBps    []uint32 `toml:"FullBps"`
	ReducedBps []uint32 `toml:"ReducedBps"`
}

// RefundConfig models the refund windows.
type RefundConfig struct {
	FeeWindowBlocks  uint64 `toml:"FeeWindowBlocks"`
	FreeWindowBlocks uint64 `toml:"FreeWindowBlocks"`
	FeeBps           uint32 `toml:"FeeBps"`
}

// FeedConfig binds a static price answer to an asset for local deployments.
type FeedConfig struct {
	Asset    string `toml:"Asset"`
	Answer   string `toml:"Answer"`
	Decimals uint8  `toml:"Decimals"`
}

// PoolConfig binds a fixed-tick pool for local deployments. Asset0 must sort
// below Asset1 byte-wise, matching on-pool ordering.
type PoolConfig struct {
	Asset0 string `toml:"Asset0"`
	Asset1 string `toml:"Asset1"`
	Tick   int32  `toml:"Tick"`
}

// OracleConfig models the TWAP lookback, the static feed set, and the
// optional local pool.
type OracleConfig struct {
	SecondsAgo uint32       `toml:"SecondsAgo"`
	Feeds      []FeedConfig `toml:"Feeds"`
	Pool       *PoolConfig  `toml:"Pool"`
}

// TreasuryConfig models the split shares and swap routing.
type TreasuryConfig struct {
	Address       string `toml:"Address"`
	MintBps       uint32 `toml:"MintBps"`
	BurnBps       uint32 `toml:"BurnBps"`
	WrappedNative string `toml:"WrappedNative"`
	Intermediate  string `toml:"Intermediate"`
	FeeTierIn     uint32 `toml:"FeeTierIn"`
	FeeTierOut    uint32 `toml:"FeeTierOut"`
	SlippageBps   uint32 `toml:"SlippageBps"`
}

// RPCConfig models the read-only HTTP surface.
type RPCConfig struct {
	ListenAddress string `toml:"ListenAddress"`
}

// StorageConfig models persistence.
type StorageConfig struct {
	DataDir string `toml:"DataDir"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPC.ListenAddress) == "" {
		c.RPC.ListenAddress = ":8650"
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		c.Storage.DataDir = "./giftledger-data"
	}
	if c.Oracle.SecondsAgo == 0 {
		c.Oracle.SecondsAgo = 1800
	}
}

// Validate checks every section against the module invariants so a broken
// file is rejected before any engine is built.
func (c *Config) Validate() error {
	if _, err := c.InstanceID(); err != nil {
		return err
	}
	if _, err := ParseAddress(c.Ledger.RewardAsset); err != nil {
		return fmt.Errorf("config: reward asset: %w", err)
	}
	if _, err := ParseAddress(c.Ledger.Treasury); err != nil {
		return fmt.Errorf("config: treasury: %w", err)
	}
	if _, err := c.CommissionTable(); err != nil {
		return err
	}
	if err := c.RefundSettings().Validate(); err != nil {
		return err
	}
	split := c.SplitSettings()
	if err := split.Validate(); err != nil {
		return err
	}
	if _, err := c.SwapSettings(); err != nil {
		return err
	}
	for i, feed := range c.Oracle.Feeds {
		if _, err := ParseAddress(feed.Asset); err != nil {
			return fmt.Errorf("config: feed %d asset: %w", i, err)
		}
		if _, err := ParseBig(feed.Answer); err != nil {
			return fmt.Errorf("config: feed %d answer: %w", i, err)
		}
	}
	if c.Oracle.Pool != nil {
		if _, err := ParseAddress(c.Oracle.Pool.Asset0); err != nil {
			return fmt.Errorf("config: pool asset0: %w", err)
		}
		if _, err := ParseAddress(c.Oracle.Pool.Asset1); err != nil {
			return fmt.Errorf("config: pool asset1: %w", err)
		}
	}
	return nil
}

// InstanceID decodes the 32-byte ledger instance identifier.
func (c *Config) InstanceID() ([32]byte, error) {
	var id [32]byte
	raw, err := decodeHex(c.Ledger.InstanceID, 32)
	if err != nil {
		return id, fmt.Errorf("config: instance id: %w", err)
	}
	copy(id[:], raw)
	return id, nil
}

// CommissionTable converts the commission section into the fee engine's
// table and validates it.
func (c *Config) CommissionTable() (fees.CommissionTable, error) {
	var table fees.CommissionTable
	if len(c.Commission.Thresholds) != fees.TierCount ||
		len(c.Commission.FullBps) != fees.TierCount ||
		len(c.Commission.ReducedBps) != fees.TierCount {
		return table, fmt.Errorf("config: commission table requires %d tiers", fees.TierCount)
	}
	for i := 0; i < fees.TierCount; i++ {
		threshold, err := ParseBig(c.Commission.Thresholds[i])
		if err != nil {
			return table, fmt.Errorf("config: threshold %d: %w", i+1, err)
		}
		table.Thresholds[i] = threshold
		table.Rates[i] = fees.RatePair{
			FullBps:    c.Commission.FullBps[i],
			ReducedBps: c.Commission.ReducedBps[i],
		}
	}
	if _, err := table.Validate(); err != nil {
		return table, err
	}
	return table, nil
}

// RefundSettings converts the refund section.
func (c *Config) RefundSettings() fees.RefundSettings {
	return fees.RefundSettings{
		FeeWindowBlocks:  c.Refund.FeeWindowBlocks,
		FreeWindowBlocks: c.Refund.FreeWindowBlocks,
		FeeBps:           c.Refund.FeeBps,
	}
}

// SplitSettings converts the treasury split shares.
func (c *Config) SplitSettings() treasury.SplitSettings {
	return treasury.SplitSettings{
		MintBps: c.Treasury.MintBps,
		BurnBps: c.Treasury.BurnBps,
	}
}

// SwapSettings converts and validates the swap routing section.
func (c *Config) SwapSettings() (treasury.SwapSettings, error) {
	wrapped, err := ParseAddress(c.Treasury.WrappedNative)
	if err != nil {
		return treasury.SwapSettings{}, fmt.Errorf("config: wrapped native: %w", err)
	}
	intermediate, err := ParseAddress(c.Treasury.Intermediate)
	if err != nil {
		return treasury.SwapSettings{}, fmt.Errorf("config: intermediate: %w", err)
	}
	settings := treasury.SwapSettings{
		WrappedNative: wrapped,
		Intermediate:  intermediate,
		FeeTierIn:     c.Treasury.FeeTierIn,
		FeeTierOut:    c.Treasury.FeeTierOut,
		SlippageBps:   c.Treasury.SlippageBps,
	}
	if err := settings.Validate(); err != nil {
		return treasury.SwapSettings{}, err
	}
	return settings, nil
}

// ParseAddress decodes a 0x-prefixed 20-byte identifier.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := decodeHex(s, 20)
	if err != nil {
		return addr, err
	}
	copy(addr[:], raw)
	if addr == ([20]byte{}) {
		return addr, fmt.Errorf("zero address")
	}
	return addr, nil
}

// ParseBig decodes a positive decimal string.
func ParseBig(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("value %q must be positive", s)
	}
	return v, nil
}

func decodeHex(s string, length int) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(raw) != length {
		return nil, fmt.Errorf("expected %d bytes, got %d", length, len(raw))
	}
	return raw, nil
}
