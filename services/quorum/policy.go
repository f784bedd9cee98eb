package quorum

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	errZeroDenominator   = errors.New("quorum: denominator must be positive")
	errNumeratorTooLarge = errors.New("quorum: numerator must be less than denominator")
	errZeroNumerator     = errors.New("quorum: numerator must be positive")
	errMinRosterTooSmall = errors.New("quorum: min roster must be at least 1")
)

// Policy 法定人数策略
//
// 不同签名者数 signers 满足 signers * Denominator > roster * Numerator 时通过，
// 即严格超过 Numerator/Denominator 比例的验证者签名（128 位乘积比较，不会回绕）；
// 名单人数低于 MinRoster 时任何签名集合都不能通过。
type Policy struct {
	Numerator   uint64 `json:"numerator" toml:"numerator"`
	Denominator uint64 `json:"denominator" toml:"denominator"`
	MinRoster   int    `json:"minRoster" toml:"min_roster"`
}

// DefaultPolicy 默认策略：超过 2/3，名单至少 3 人
func DefaultPolicy() Policy {
	return Policy{
		Numerator:   2,
		Denominator: 3,
		MinRoster:   3,
	}
}

// Validate 校验策略参数
func (p Policy) Validate() error {
	switch {
	case p.Denominator == 0:
		return errZeroDenominator
	case p.Numerator == 0:
		return errZeroNumerator
	case p.Numerator >= p.Denominator:
		return fmt.Errorf("%w: %d/%d", errNumeratorTooLarge, p.Numerator, p.Denominator)
	case p.MinRoster < 1:
		return errMinRosterTooSmall
	}
	return nil
}

// Met 判断 signers 个不同签名者对 roster 人数的名单是否达到法定人数
func (p Policy) Met(signers, roster int) bool {
	if signers <= 0 || roster <= 0 {
		return false
	}
	lhsHi, lhsLo := bits.Mul64(uint64(signers), p.Denominator)
	rhsHi, rhsLo := bits.Mul64(uint64(roster), p.Numerator)
	return lhsHi > rhsHi || (lhsHi == rhsHi && lhsLo > rhsLo)
}

// Threshold 返回 roster 人数下通过所需的最少签名者数
func (p Policy) Threshold(roster int) int {
	if roster <= 0 {
		return 0
	}
	// Numerator < Denominator 保证高位小于除数，Div64 不会溢出
	hi, lo := bits.Mul64(uint64(roster), p.Numerator)
	q, _ := bits.Div64(hi, lo, p.Denominator)
	return int(q) + 1
}

func (p Policy) String() string {
	return fmt.Sprintf("%d/%d (min roster %d)", p.Numerator, p.Denominator, p.MinRoster)
}
