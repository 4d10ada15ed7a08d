package procfs

import (
	"strconv"
	"strings"
)

// ParseMeminfo parses /proc/meminfo text into a map of field name to value.
// Values keep the unit of the file (kB for sizes); the unit itself is dropped.
// Lines that do not look like "Key: value [unit]" are skipped.
func ParseMeminfo(text string) map[string]int64 {
	result := make(map[string]int64)
	for _, line := range strings.Split(text, "\n") {
		key, rest, ok := strings.Cut(line, ":")
		if !ok || strings.Contains(rest, ":") {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		value, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		result[key] = value
	}
	return result
}
