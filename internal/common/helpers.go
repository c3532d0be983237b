package common

import (
	"fmt"
	"strconv"
	"strings"
)

// CreditDecimals Aleo credits have 6 decimals (microcredits)
const CreditDecimals = 6

// MicroToCredits converts microcredits to a credits string without float precision loss
func MicroToCredits(micro uint64) string {
	return formatWithDecimals(micro, CreditDecimals)
}

// CreditsToMicro converts a credits string to microcredits without float precision loss
func CreditsToMicro(credits string) (uint64, error) {
	return parseWithDecimals(credits, CreditDecimals)
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(5999000, 6) = "5.999000"
func formatWithDecimals(value uint64, decimals int) string {
	s := fmt.Sprintf("%d", value)

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	// Insert decimal point
	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// parseWithDecimals converts decimal string to integer by removing decimal point
// Example: parseWithDecimals("5.999", 6) = 5999000
func parseWithDecimals(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	parts := strings.Split(s, ".")

	if len(parts) == 1 {
		// No decimal point - append the zeros before parsing so a value too
		// large for uint64 fails instead of wrapping
		return strconv.ParseUint(parts[0]+strings.Repeat("0", decimals), 10, 64)
	}

	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid decimal format")
	}

	whole := parts[0]
	frac := parts[1]

	// Pad or truncate fractional part to exact decimals
	if len(frac) < decimals {
		frac += strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	// Combine and parse
	combined := whole + frac
	return strconv.ParseUint(combined, 10, 64)
}
