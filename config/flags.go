package config

import (
	"github.com/spf13/pflag"
)

// BindFlags 注册命令行参数，参数名与 ApplyFileConfig / ApplyEnvConfig 中的键一致
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "LevelDB state directory (empty keeps state in memory)")
	fs.BoolVar(&cfg.SyncWrites, "sync-writes", cfg.SyncWrites, "fsync every state commit")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "JSON-RPC / WebSocket / metrics listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC listen address (empty disables gRPC)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")

	fs.StringVar(&cfg.DomainName, "domain-name", cfg.DomainName, "signing domain name")
	fs.StringVar(&cfg.DomainVersion, "domain-version", cfg.DomainVersion, "signing domain version")
	fs.Uint64Var(&cfg.ChainID, "chain-id", cfg.ChainID, "signing domain chain id")
	fs.StringVar(&cfg.VerifyingContract, "verifying-contract", cfg.VerifyingContract, "signing domain verifying contract address")

	fs.StringVar(&cfg.Owner, "owner", cfg.Owner, "initial owner address")
	fs.StringSliceVar(&cfg.Validators, "validators", cfg.Validators, "initial validator addresses")
	fs.StringSliceVar(&cfg.Tokens, "tokens", cfg.Tokens, "initially supported token addresses")

	fs.Uint64Var(&cfg.Quorum.Numerator, "quorum-numerator", cfg.Quorum.Numerator, "quorum fraction numerator")
	fs.Uint64Var(&cfg.Quorum.Denominator, "quorum-denominator", cfg.Quorum.Denominator, "quorum fraction denominator")
	fs.IntVar(&cfg.Quorum.MinRoster, "quorum-min-roster", cfg.Quorum.MinRoster, "minimum roster size")
}

// ChangedFlags 收集命令行显式设置的参数
func ChangedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := make(map[string]bool)
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

// Load 按 默认值 → 文件 → 环境变量 → 命令行 的顺序组装配置并校验
//
// cfg 已通过 BindFlags 绑定并完成 Parse；path 为空或文件不存在时跳过文件。
func Load(cfg *Config, fs *pflag.FlagSet, path string) error {
	if err := Resolve(cfg, fs, path); err != nil {
		return err
	}
	return cfg.Validate()
}

// Resolve 与 Load 相同但不校验，供只需要部分字段（如签名域）的命令使用
func Resolve(cfg *Config, fs *pflag.FlagSet, path string) error {
	changed := ChangedFlags(fs)

	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return err
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	return ApplyEnvConfig(cfg, changed)
}
