// Package config 节点配置：默认值 → TOML 文件 → BRIDGE_* 环境变量 → 命令行参数，后者覆盖前者
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/weisyn/bridge-go/services"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/utils"
)

// 默认值
const (
	DefaultHTTPAddr        = "127.0.0.1:8645"
	DefaultGRPCAddr        = "127.0.0.1:8646"
	DefaultShutdownTimeout = 10 * time.Second
)

// Config 节点配置
type Config struct {
	// 存储
	DataDir    string
	SyncWrites bool

	// 接入
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration

	// 日志
	LogLevel  string
	LogFormat string

	// 签名域
	DomainName        string
	DomainVersion     string
	ChainID           uint64
	VerifyingContract string

	// 初始状态（仅首次启动生效）
	Owner      string
	Validators []string
	Tokens     []string

	// 法定人数
	Quorum quorum.Policy
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		SyncWrites:      true,
		HTTPAddr:        DefaultHTTPAddr,
		GRPCAddr:        DefaultGRPCAddr,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        "info",
		LogFormat:       "console",
		DomainName:      "Bridge",
		DomainVersion:   "1",
		ChainID:         1337,
		Quorum:          quorum.DefaultPolicy(),
	}
}

// DefaultConfigPath 默认配置文件路径 ~/.bridge/config.toml
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".bridge", "config.toml")
	}
	return ""
}

// FileExists 文件是否存在
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http-addr is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if err := c.Quorum.Validate(); err != nil {
		return err
	}
	sc, err := c.ServiceConfig()
	if err != nil {
		return err
	}
	return sc.Validate()
}

// ServiceConfig 转换为结算引擎配置
func (c *Config) ServiceConfig() (*services.Config, error) {
	owner, err := utils.ParseAddress(c.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	validators, err := utils.ParseAddresses(c.Validators)
	if err != nil {
		return nil, fmt.Errorf("validators: %w", err)
	}
	tokens, err := utils.ParseAddresses(c.Tokens)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}

	domain, err := c.Domain()
	if err != nil {
		return nil, err
	}

	return &services.Config{
		Domain:     domain,
		Owner:      owner,
		Validators: validators,
		Tokens:     tokens,
		Quorum:     c.Quorum,
	}, nil
}

// Domain 签名域
func (c *Config) Domain() (quorum.Domain, error) {
	domain := quorum.Domain{
		Name:    c.DomainName,
		Version: c.DomainVersion,
		ChainID: c.ChainID,
	}
	if c.VerifyingContract != "" {
		addr, err := utils.ParseAddress(c.VerifyingContract)
		if err != nil {
			return quorum.Domain{}, fmt.Errorf("verifying contract: %w", err)
		}
		domain.VerifyingContract = addr
	}
	return domain, nil
}

// configSetter 按优先级写入配置：已由命令行显式设置的字段不再覆盖
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setUint64(flag string, value uint64, dst *uint64) {
	if value == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setUint64FromString(flag, value string, dst *uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = v
	return nil
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = v
	return nil
}

func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
