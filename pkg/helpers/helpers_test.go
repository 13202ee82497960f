package helpers

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
	}{
		{"100000000", 8, "1"},
		{"150000000", 8, "1.5"},
		{"1", 8, "0.00000001"},
		{"0", 8, "0"},
		{"1000000000000000000", 18, "1"},
		{"1234500000000000000", 18, "1.2345"},
		{"2500000", 6, "2.5"},
		{"42", 0, "42"},
	}

	for _, tc := range tests {
		amount, _ := new(big.Int).SetString(tc.amount, 10)
		got := FormatUnits(amount, tc.decimals)
		if got != tc.want {
			t.Errorf("FormatUnits(%s, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		s        string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1", 8, "100000000", false},
		{"1.5", 8, "150000000", false},
		{"0.00000001", 8, "1", false},
		{"1", 18, "1000000000000000000", false},
		{"", 8, "", true},
		{"1.2.3", 8, "", true},
		{"abc", 8, "", true},
	}

	for _, tc := range tests {
		got, err := ParseUnits(tc.s, tc.decimals)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseUnits(%q) should fail", tc.s)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseUnits(%q) error = %v", tc.s, err)
		}
		if got.String() != tc.want {
			t.Errorf("ParseUnits(%q, %d) = %s, want %s", tc.s, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, s := range []string{"100000000", "123456789", "1", "999999999999999999"} {
		amount, _ := new(big.Int).SetString(s, 10)
		parsed, err := ParseUnits(FormatUnits(amount, 8), 8)
		if err != nil {
			t.Fatalf("round trip of %s: %v", s, err)
		}
		if parsed.Cmp(amount) != 0 {
			t.Errorf("round trip of %s = %s", s, parsed)
		}
	}
}

func TestUnitsToFloat(t *testing.T) {
	amount := big.NewInt(150000000)
	got := UnitsToFloat(amount, 8)
	if got != 1.5 {
		t.Errorf("UnitsToFloat = %f, want 1.5", got)
	}
}
