package tokens

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// DefaultTTLSeconds is used for malformed duration strings.
const DefaultTTLSeconds = 86400

// maxTTLSeconds keeps the result representable as a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

var ttlUnits = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
}

// ParseTTL converts a compact duration such as "15m" or "7d" to seconds.
// Anything else, including values too large for a time.Duration, yields
// DefaultTTLSeconds.
func ParseTTL(s string) int64 {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultTTLSeconds
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	unit := ttlUnits[m[2]]
	if err != nil || n > maxTTLSeconds/unit {
		return DefaultTTLSeconds
	}
	return n * unit
}

// ParseTTLDuration is ParseTTL as a time.Duration.
func ParseTTLDuration(s string) time.Duration {
	return time.Duration(ParseTTL(s)) * time.Second
}
