package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

const maxFractionDigits = 6

var fractionPattern = regexp.MustCompile(`\.(\d+)`)

// ParseCreated parses a runtime creation timestamp. Fractional seconds are
// cut to microseconds first; the runtime reports nanoseconds and some
// producers emit even more digits.
func ParseCreated(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc := fractionPattern.FindStringSubmatchIndex(s); loc != nil {
		digits := s[loc[2]:loc[3]]
		if len(digits) > maxFractionDigits {
			s = s[:loc[2]] + digits[:maxFractionDigits] + s[loc[3]:]
		}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created %q: %w", s, err)
	}
	return t, nil
}

// FormatUptime renders d as "{d}d {h}h {m}m", "{h}h {m}m" or "{m}m".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// Uptime returns the time elapsed since created, or domain.Unknown.
func Uptime(created string, now time.Time) string {
	t, err := ParseCreated(created)
	if err != nil {
		return domain.Unknown
	}
	return FormatUptime(now.In(t.Location()).Sub(t))
}
