package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress 解析十六进制地址（20 字节，带或不带 0x 前缀）
//
// **校验规则**：
// - 必须是 40 个十六进制字符
// - 全小写 / 全大写不做校验和检查
// - 大小写混合时按 EIP-55 校验和验证
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}

	addr := common.HexToAddress(s)

	body := HexRemovePrefix(s)
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return common.Address{}, fmt.Errorf("invalid address checksum: %q", s)
		}
	}

	return addr, nil
}

// ParseAddresses 批量解析地址，返回第一个失败项的索引
func ParseAddresses(items []string) ([]common.Address, error) {
	addrs := make([]common.Address, 0, len(items))
	for i, item := range items {
		addr, err := ParseAddress(item)
		if err != nil {
			return nil, fmt.Errorf("address[%d]: %w", i, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// FormatAddresses 将地址列表格式化为 EIP-55 校验和字符串
func FormatAddresses(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = addr.Hex()
	}
	return out
}

// IsZeroAddress 判断是否为零地址
func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

// DecodeHex 解码十六进制字符串（允许 0x 前缀）
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(HexRemovePrefix(strings.TrimSpace(s)))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// EncodeHex 编码为带 0x 前缀的十六进制字符串
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// HexRemovePrefix 移除十六进制字符串的 0x 前缀
func HexRemovePrefix(hexStr string) string {
	if len(hexStr) >= 2 && (hexStr[:2] == "0x" || hexStr[:2] == "0X") {
		return hexStr[2:]
	}
	return hexStr
}
