package util

import (
	"math"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"105.50", 10550, false},
		{"100", 10000, false},
		{"0.01", 1, false},
		{"0.5", 50, false},
		{"-3.25", -325, false},
		{"105.505", 0, true}, // sub-cent
		{"abc", 0, true},
		{"", 0, true},
		{"92233720368547758.08", 0, true}, // 2^63 cents, past int64
		{"99999999999999999999.00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMoney(%q): expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMoney(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	if got := FormatMoney(10550); got != "105.50" {
		t.Errorf("FormatMoney(10550) = %q, want %q", got, "105.50")
	}
	if got := FormatMoney(1); got != "0.01" {
		t.Errorf("FormatMoney(1) = %q, want %q", got, "0.01")
	}
	if got := FormatMoney(0); got != "0.00" {
		t.Errorf("FormatMoney(0) = %q, want %q", got, "0.00")
	}
}

func TestNotional(t *testing.T) {
	tests := []struct {
		shares, price int64
		want          int64
		ok            bool
	}{
		{10, 10000, 100000, true},
		{1, math.MaxInt64, math.MaxInt64, true},
		{4, 1<<62 + 1, 0, false}, // wraps to 4 if multiplied raw
		{2, math.MaxInt64, 0, false},
		{math.MaxInt64, math.MaxInt64, 0, false},
		{0, 100, 0, false},
		{-1, 100, 0, false},
		{100, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := Notional(tt.shares, tt.price)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Notional(%d, %d) = %d, %v; want %d, %v", tt.shares, tt.price, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 10550, 123456789} {
		got, err := ParseMoney(FormatMoney(cents))
		if err != nil {
			t.Fatalf("round trip %d: %v", cents, err)
		}
		if got != cents {
			t.Errorf("round trip %d: got %d", cents, got)
		}
	}
}
