package config

import (
	"os"
	"strings"
)

// ApplyEnvConfig 应用 BRIDGE_* 环境变量，changed 中的参数已由命令行设置，不覆盖
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("data-dir", os.Getenv("BRIDGE_DATA_DIR"), &cfg.DataDir)
	s.setBoolFromString("sync-writes", os.Getenv("BRIDGE_SYNC_WRITES"), &cfg.SyncWrites)
	s.setString("http-addr", os.Getenv("BRIDGE_HTTP_ADDR"), &cfg.HTTPAddr)
	s.setString("grpc-addr", os.Getenv("BRIDGE_GRPC_ADDR"), &cfg.GRPCAddr)
	s.setString("log-level", os.Getenv("BRIDGE_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("BRIDGE_LOG_FORMAT"), &cfg.LogFormat)
	if err := s.setDuration("shutdown-timeout", os.Getenv("BRIDGE_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setString("domain-name", os.Getenv("BRIDGE_DOMAIN_NAME"), &cfg.DomainName)
	s.setString("domain-version", os.Getenv("BRIDGE_DOMAIN_VERSION"), &cfg.DomainVersion)
	if err := s.setUint64FromString("chain-id", os.Getenv("BRIDGE_CHAIN_ID"), &cfg.ChainID); err != nil {
		return err
	}
	s.setString("verifying-contract", os.Getenv("BRIDGE_VERIFYING_CONTRACT"), &cfg.VerifyingContract)

	s.setString("owner", os.Getenv("BRIDGE_OWNER"), &cfg.Owner)
	s.setStrings("validators", splitList(os.Getenv("BRIDGE_VALIDATORS")), &cfg.Validators)
	s.setStrings("tokens", splitList(os.Getenv("BRIDGE_TOKENS")), &cfg.Tokens)

	if err := s.setUint64FromString("quorum-numerator", os.Getenv("BRIDGE_QUORUM_NUMERATOR"), &cfg.Quorum.Numerator); err != nil {
		return err
	}
	if err := s.setUint64FromString("quorum-denominator", os.Getenv("BRIDGE_QUORUM_DENOMINATOR"), &cfg.Quorum.Denominator); err != nil {
		return err
	}
	return s.setIntFromString("quorum-min-roster", os.Getenv("BRIDGE_QUORUM_MIN_ROSTER"), &cfg.Quorum.MinRoster)
}

// splitList 逗号分隔列表，忽略空项
func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
