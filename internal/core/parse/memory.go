package parse

import (
	"math"
	"strconv"
	"strings"
)

var memoryUnits = []struct {
	suffix string
	factor float64
}{
	{"GiB", 1024},
	{"MiB", 1},
	{"KiB", 1.0 / 1024},
}

// MemoryMB converts "<value><unit> / <limit>" to megabytes of the used part.
// Unrecognized units and unparsable values yield 0.
func MemoryMB(usage string) float64 {
	used, _, _ := strings.Cut(usage, "/")
	used = strings.TrimSpace(used)
	for _, u := range memoryUnits {
		if !strings.HasSuffix(used, u.suffix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(used, u.suffix)), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v * u.factor
	}
	return 0
}

// RoundMB rounds to two decimal places.
func RoundMB(v float64) float64 {
	return math.Round(v*100) / 100
}
