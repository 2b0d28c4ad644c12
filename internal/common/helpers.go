package common

import (
	"math/big"
	"strings"
)

// FormatBalance converts a raw on-chain amount to a decimal string using the
// network decimals, without float precision loss.
// Example: FormatBalance(big.NewInt(24981836), 9) = "0.024981836"
func FormatBalance(value *big.Int, decimals uint8) string {
	return formatWithDecimals(value, int(decimals))
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(24981836, 9) = "0.024981836"
func formatWithDecimals(value *big.Int, decimals int) string {
	neg := value.Sign() < 0
	s := new(big.Int).Abs(value).String()
	if decimals == 0 {
		if neg {
			return "-" + s
		}
		return s
	}

	// Pad with leading zeros if needed
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	// Insert decimal point
	pos := len(s) - decimals
	out := s[:pos] + "." + s[pos:]
	if neg {
		out = "-" + out
	}
	return out
}
