package walker

import (
	"strings"
	"unicode/utf8"
)

const yearKeyLen = 4

// YearFilter decides which year keys get a feed.
type YearFilter func(year string) bool

// YearKey returns the first four characters of a folder name. ok is false
// for names shorter than four characters.
func YearKey(name string) (key string, ok bool) {
	if utf8.RuneCountInString(name) < yearKeyLen {
		return "", false
	}
	n := 0
	for i := range name {
		if n == yearKeyLen {
			return name[:i], true
		}
		n++
	}
	return name, true
}

// MatchYears accepts exactly the given years. With no years it accepts any
// key made of four ASCII digits.
func MatchYears(years ...string) YearFilter {
	if len(years) == 0 {
		return isDigits
	}
	set := make(map[string]struct{}, len(years))
	for _, y := range years {
		set[y] = struct{}{}
	}
	return func(year string) bool {
		_, ok := set[year]
		return ok
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsVideoName reports whether name ends in ".mp4" or ".MP4". Mixed case
// variants are not matched.
func IsVideoName(name string) bool {
	return strings.HasSuffix(name, ".mp4") || strings.HasSuffix(name, ".MP4")
}
