// Package procfs parses the text of /proc files fetched from a device.
package procfs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type unit struct {
	name    string
	seconds float64
}

var units = [...]unit{
	{"year", 31536000},
	{"month", 2628000},
	{"day", 86400},
	{"hour", 3600},
	{"minute", 60},
	{"second", 1},
}

// Uptime is a duration broken down into years, months, days, hours, minutes
// and seconds, in that order.
type Uptime [len(units)]int

// ReadUptime returns the first field of /proc/uptime in seconds.
func ReadUptime(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty uptime")
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid uptime %q: %w", fields[0], err)
	}
	return seconds, nil
}

// ParseUptime breaks seconds down into calendar-ish units.
func ParseUptime(seconds float64) Uptime {
	var u Uptime
	for i, un := range units {
		value := seconds / un.seconds
		if value < 1 {
			continue
		}
		u[i] = int(value)
		seconds = math.Mod(seconds, un.seconds)
	}
	return u
}

// Seconds converts u back to seconds.
func (u Uptime) Seconds() float64 {
	var total float64
	for i, un := range units {
		total += float64(u[i]) * un.seconds
	}
	return total
}

// Short renders u like "3d 4h 5m " using sep after every non-zero unit.
func (u Uptime) Short(sep string) string {
	var b strings.Builder
	for i, un := range units {
		if u[i] >= 1 {
			fmt.Fprintf(&b, "%d%c%s", u[i], un.name[0], sep)
		}
	}
	return b.String()
}

// Extended renders u like "3 days 4 hours " using sep after every non-zero unit.
func (u Uptime) Extended(sep string) string {
	var b strings.Builder
	for i, un := range units {
		if u[i] >= 1 {
			fmt.Fprintf(&b, "%d %s%s", u[i], plural(un.name, u[i]), sep)
		}
	}
	return b.String()
}

// Round renders u as its largest unit that rounds to at least one, e.g. "3 days".
func (u Uptime) Round() string {
	seconds := u.Seconds()
	for _, un := range units {
		r := int(math.Round(seconds / un.seconds))
		if r > 0 {
			return fmt.Sprintf("%d %s", r, plural(un.name, r))
		}
	}
	return "0 seconds"
}

func plural(name string, n int) string {
	if n > 1 {
		return name + "s"
	}
	return name
}
