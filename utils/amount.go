package utils

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ParseAmount 解析 uint256 金额
// 支持十进制（"1000"）和 0x 前缀十六进制（"0x3e8"）
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		body := strings.TrimLeft(s[2:], "0")
		if body == "" && len(s) > 2 {
			return new(uint256.Int), nil
		}
		v, err := uint256.FromHex("0x" + body)
		if err != nil {
			return nil, fmt.Errorf("invalid hex amount %q: %w", s, err)
		}
		return v, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// ParseAmounts 批量解析金额
func ParseAmounts(items []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, 0, len(items))
	for i, item := range items {
		v, err := ParseAmount(item)
		if err != nil {
			return nil, fmt.Errorf("amount[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatAmounts 格式化为十进制字符串
func FormatAmounts(amounts []*uint256.Int) []string {
	out := make([]string, len(amounts))
	for i, v := range amounts {
		out[i] = FormatAmount(v)
	}
	return out
}

// FormatAmount 格式化为十进制字符串，nil 视为 0
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// SumAmounts 计算金额之和，溢出时 overflow 为 true
func SumAmounts(amounts []*uint256.Int) (sum *uint256.Int, overflow bool) {
	sum = new(uint256.Int)
	for _, v := range amounts {
		if v == nil {
			continue
		}
		if _, of := sum.AddOverflow(sum, v); of {
			return sum, true
		}
	}
	return sum, false
}
