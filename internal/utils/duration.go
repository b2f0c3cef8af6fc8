package utils

import (
	"regexp"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

var durationGrammar = regexp.MustCompile(`^([0-9]+[dhms])+$`)

// ParseDuration parses compact durations such as "1d2h30m". Units may appear
// in any order and repeated units add up ("1h1h" is two hours). Anything
// outside the grammar, including whitespace, and non-positive totals yield false.
func ParseDuration(value string) (time.Duration, bool) {
	if !durationGrammar.MatchString(value) {
		return 0, false
	}
	d, err := str2duration.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// Seconds is ParseDuration expressed in whole seconds.
func Seconds(value string) (int64, bool) {
	d, ok := ParseDuration(value)
	if !ok {
		return 0, false
	}
	return int64(d / time.Second), true
}
