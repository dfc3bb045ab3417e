// Package formatting converts between raw quantities and the rounded or
// human-readable forms used in config files and API payloads.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const kibi = 1024

// byteUnits is ordered by power of 1024.
var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with base-1024 units, e.g. "10 MB". Trailing
// zeros after the decimal point are kept to precision.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)
	if n < kibi {
		return strconv.FormatInt(n, 10) + " B"
	}

	size := float64(n)
	exp := 0
	for size >= kibi && exp < len(byteUnits)-1 {
		size /= kibi
		exp++
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + byteUnits[exp]
}

// ParseBytes reads sizes such as "10MB", "512 kb", or "1.5GiB" (all
// base-1024). A bare number is bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	exp, err := unitExponent(unit)
	if err != nil {
		return 0, err
	}

	bytes := value * math.Pow(kibi, float64(exp))
	if bytes > math.MaxInt64 {
		return 0, fmt.Errorf("byte size overflows: %q", s)
	}
	return int64(bytes), nil
}

func unitExponent(unit string) (int, error) {
	u := strings.ToUpper(unit)
	if u == "" {
		return 0, nil
	}
	u = strings.Replace(u, "IB", "B", 1)
	for i, known := range byteUnits {
		if u == known || (i > 0 && u == known[:1]) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", unit)
}
