package services

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/services/quorum"
)

// Config 结算引擎的业务配置：签名域、初始所有者、初始验证者名单、初始支持代币与法定人数策略。
//
// **说明**：
// - Owner/Validators/Tokens 仅在状态库为空（首次启动）时生效，之后以持久化状态为准
// - Domain 决定签名域分隔符，部署后不应变更，否则已有签名全部失效
// - Quorum 可在运行时热更新
type Config struct {
	// 签名域
	Domain quorum.Domain

	// 初始所有者（管理员）
	Owner common.Address

	// 初始验证者名单
	Validators []common.Address

	// 初始支持的代币
	Tokens []common.Address

	// 法定人数策略
	Quorum quorum.Policy
}

// DefaultConfig 默认配置（测试网签名域 + 默认法定人数策略）
func DefaultConfig() *Config {
	return &Config{
		Domain: quorum.Domain{
			Name:    "Bridge",
			Version: "1",
			ChainID: 1337,
		},
		Quorum: quorum.DefaultPolicy(),
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Domain.Name == "" {
		return fmt.Errorf("domain name is required")
	}
	if c.Owner == (common.Address{}) {
		return fmt.Errorf("owner is required")
	}
	if err := c.Quorum.Validate(); err != nil {
		return err
	}
	return nil
}
