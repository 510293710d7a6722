package pension

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatMoney renders a dollar amount with thousands separators and no
// cents, e.g. 1234567.89 -> "$1,234,568".
func FormatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := strconv.FormatFloat(v, 'f', 0, 64)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatPercent renders a ratio-style percentage with one decimal,
// e.g. 42.35 -> "42.4%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// ParseMoney recovers a number from a display string produced by
// FormatMoney or similar, tolerating "$", ",", "%" and surrounding space.
func ParseMoney(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	if cleaned == "" {
		return 0, fmt.Errorf("parse money %q: empty after cleanup", s)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return v, nil
}
