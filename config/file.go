package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/weisyn/bridge-go/services/quorum"
)

// FileConfig TOML 配置文件结构
//
//	data_dir = "/var/lib/bridge"
//	http_addr = "127.0.0.1:8645"
//
//	[domain]
//	name = "Bridge"
//	chain_id = 1337
//
//	[genesis]
//	owner = "0x..."
//	validators = ["0x...", "0x..."]
//
//	[quorum]
//	numerator = 2
//	denominator = 3
//	min_roster = 3
type FileConfig struct {
	DataDir         string `toml:"data_dir"`
	SyncWrites      *bool  `toml:"sync_writes"`
	HTTPAddr        string `toml:"http_addr"`
	GRPCAddr        string `toml:"grpc_addr"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`

	Domain  DomainSection  `toml:"domain"`
	Genesis GenesisSection `toml:"genesis"`
	Quorum  QuorumSection  `toml:"quorum"`
}

// DomainSection [domain]
type DomainSection struct {
	Name              string `toml:"name"`
	Version           string `toml:"version"`
	ChainID           uint64 `toml:"chain_id"`
	VerifyingContract string `toml:"verifying_contract"`
}

// GenesisSection [genesis]
type GenesisSection struct {
	Owner      string   `toml:"owner"`
	Validators []string `toml:"validators"`
	Tokens     []string `toml:"tokens"`
}

// QuorumSection [quorum]
type QuorumSection struct {
	Numerator   uint64 `toml:"numerator"`
	Denominator uint64 `toml:"denominator"`
	MinRoster   int    `toml:"min_roster"`
}

// LoadFileConfig 读取并解析 TOML 配置文件
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// ApplyFileConfig 应用配置文件，changed 中的参数已由命令行设置，不覆盖
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setBool("sync-writes", fc.SyncWrites, &cfg.SyncWrites)
	s.setString("http-addr", fc.HTTPAddr, &cfg.HTTPAddr)
	s.setString("grpc-addr", fc.GRPCAddr, &cfg.GRPCAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setString("domain-name", fc.Domain.Name, &cfg.DomainName)
	s.setString("domain-version", fc.Domain.Version, &cfg.DomainVersion)
	s.setUint64("chain-id", fc.Domain.ChainID, &cfg.ChainID)
	s.setString("verifying-contract", fc.Domain.VerifyingContract, &cfg.VerifyingContract)

	s.setString("owner", fc.Genesis.Owner, &cfg.Owner)
	s.setStrings("validators", fc.Genesis.Validators, &cfg.Validators)
	s.setStrings("tokens", fc.Genesis.Tokens, &cfg.Tokens)

	s.setUint64("quorum-numerator", fc.Quorum.Numerator, &cfg.Quorum.Numerator)
	s.setUint64("quorum-denominator", fc.Quorum.Denominator, &cfg.Quorum.Denominator)
	s.setInt("quorum-min-roster", fc.Quorum.MinRoster, &cfg.Quorum.MinRoster)
	return nil
}

// Policy 文件中的法定人数策略，未填写的字段取 base 的值
func (q QuorumSection) Policy(base quorum.Policy) quorum.Policy {
	p := base
	if q.Numerator != 0 {
		p.Numerator = q.Numerator
	}
	if q.Denominator != 0 {
		p.Denominator = q.Denominator
	}
	if q.MinRoster > 0 {
		p.MinRoster = q.MinRoster
	}
	return p
}
