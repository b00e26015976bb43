// SPDX-License-Identifier: MPL-2.0

package hostver

import (
	"regexp"
	"strings"
)

// ResolveDeb picks a Debian package version from available (the package
// tool's own listing, most-preferred first) matching the requested selector
// as a prefix component of the full version string. Debian versions may carry
// an epoch ("5:") and a revision suffix ("-1~ubuntu.22.04~jammy"), so
// requesting "24.0" matches "5:24.0.2-1~ubuntu.22.04~jammy" but not
// "5:24.10.1-...".
//
// latest/current/lts/stable select the tool's most-preferred version (the
// first entry) rather than re-sorting: apt's own pinning order is
// authoritative for package versions.
func ResolveDeb(requested string, available []string) (string, error) {
	if latestAliases[strings.ToLower(requested)] {
		if len(available) == 0 {
			return "", &CandidateError{Requested: requested}
		}
		return available[0], nil
	}

	re := debPrefixPattern(requested)
	for _, v := range available {
		if re.MatchString(v) {
			return v, nil
		}
	}

	return "", &CandidateError{Requested: requested, Candidates: available}
}

// debPrefixPattern builds the regex matching requested as a leading version
// component: an optional epoch, the literal request, then either end of
// string or one of the separator characters Debian versions use.
func debPrefixPattern(requested string) *regexp.Regexp {
	return regexp.MustCompile(`^(.+:)?` + regexp.QuoteMeta(requested) + `([.+~-]|$)`)
}
