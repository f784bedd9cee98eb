package utils

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "0", want: "0"},
		{input: "1000", want: "1000"},
		{input: " 42 ", want: "42"},
		{input: "0x3e8", want: "1000"},
		{input: "0X3E8", want: "1000"},
		{input: "0x03e8", want: "1000"},
		{input: "0x00", want: "0"},
		{input: "115792089237316195423570985008687907853269984665640564039457584007913129639935", want: "115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{input: "115792089237316195423570985008687907853269984665640564039457584007913129639936", wantErr: true},
		{input: "-1", wantErr: true},
		{input: "1.5", wantErr: true},
		{input: "", wantErr: true},
		{input: "0x", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.Dec() != tt.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.Dec(), tt.want)
		}
	}
}

func TestParseAmounts(t *testing.T) {
	got, err := ParseAmounts([]string{"1", "0x10"})
	if err != nil {
		t.Fatalf("ParseAmounts() error = %v", err)
	}
	if s := FormatAmounts(got); s[0] != "1" || s[1] != "16" {
		t.Errorf("FormatAmounts() = %v", s)
	}

	if _, err := ParseAmounts([]string{"1", "x"}); err == nil {
		t.Error("ParseAmounts() error = nil, want error")
	}
}

func TestSumAmounts(t *testing.T) {
	max := new(uint256.Int).SetAllOne()

	tests := []struct {
		name         string
		amounts      []*uint256.Int
		want         string
		wantOverflow bool
	}{
		{name: "empty", amounts: nil, want: "0"},
		{name: "simple", amounts: []*uint256.Int{uint256.NewInt(3), uint256.NewInt(4)}, want: "7"},
		{name: "nil entries skipped", amounts: []*uint256.Int{nil, uint256.NewInt(4)}, want: "4"},
		{name: "exactly max", amounts: []*uint256.Int{max, uint256.NewInt(0)}, want: max.Dec()},
		{name: "overflow", amounts: []*uint256.Int{max, uint256.NewInt(1)}, wantOverflow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, overflow := SumAmounts(tt.amounts)
			if overflow != tt.wantOverflow {
				t.Fatalf("SumAmounts() overflow = %v, want %v", overflow, tt.wantOverflow)
			}
			if !overflow && sum.Dec() != tt.want {
				t.Errorf("SumAmounts() = %s, want %s", sum.Dec(), tt.want)
			}
		})
	}
}

func TestFormatAmount_Nil(t *testing.T) {
	if got := FormatAmount(nil); got != "0" {
		t.Errorf("FormatAmount(nil) = %q, want \"0\"", got)
	}
}
