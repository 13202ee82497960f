// Package helpers provides amount and hex conversion utilities shared by the
// provider clients and the balance monitor.
package helpers

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatUnits formats a base-unit amount as a decimal string in display
// units. FormatUnits(big.NewInt(150000000), 8) returns "1.5".
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	if decimals == 0 {
		return amount.String()
	}

	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	whole := new(big.Int).Div(abs, divisor)
	frac := new(big.Int).Mod(abs, divisor)

	s := whole.String()
	if frac.Sign() != 0 {
		fracStr := fmt.Sprintf("%0*d", int(decimals), frac)
		fracStr = strings.TrimRight(fracStr, "0")
		s = s + "." + fracStr
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ParseUnits parses a decimal string in display units to base units.
// ParseUnits("1.5", 8) returns 150000000.
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount string")
	}

	wholeStr := s
	fracStr := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		wholeStr = s[:i]
		fracStr = s[i+1:]
	}
	if wholeStr == "" {
		wholeStr = "0"
	}

	for _, c := range wholeStr + fracStr {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("invalid character in amount: %c", c)
		}
	}

	// Pad or truncate fractional part to the chain's precision.
	for len(fracStr) < int(decimals) {
		fracStr += "0"
	}
	if len(fracStr) > int(decimals) {
		fracStr = fracStr[:decimals]
	}

	amount, ok := new(big.Int).SetString(wholeStr+fracStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return amount, nil
}

// UnitsToFloat converts a base-unit amount to a float in display units.
// Precision loss is acceptable here: the result feeds fiat estimates only,
// never on-chain values.
func UnitsToFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	result, _ := new(big.Float).Quo(f, divisor).Float64()
	return result
}
