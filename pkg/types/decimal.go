package types

import "strconv"

// formatFixed renders v in fixed-point notation with prec fractional digits;
// a prec of -1 uses the fewest digits that round-trip to v.
func formatFixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// trimTrailingZeros strips insignificant trailing zeros (and a dangling
// decimal point) from a fixed-point decimal string.
func trimTrailingZeros(s string) string {
	if s == "" {
		return s
	}
	dot := -1
	for i, c := range s {
		if c == '.' {
			dot = i
			break
		}
	}
	if dot == -1 {
		return s
	}
	end := len(s)
	for end > dot+1 && s[end-1] == '0' {
		end--
	}
	if end == dot+1 {
		end = dot
	}
	return s[:end]
}
