package common

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// OptionalFloat parses s as a float. An empty or blank string yields nil.
func OptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &v, nil
}

// IntOrDefault parses the leading integer of s, returning def when there is
// none or it is zero. "48h" parses as 48. Out-of-range values saturate.
func IntOrDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) {
		return n
	}
	if err != nil || n == 0 {
		return def
	}
	return n
}
