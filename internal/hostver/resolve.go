// SPDX-License-Identifier: MPL-2.0

// Package hostver resolves requested version selectors against candidate
// lists: git tag listings for compose tooling and Debian package version
// listings for the engine/CLI packages. Resolution is pure: callers gather
// the candidates, hostver only picks.
package hostver

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrNoMatch is the sentinel wrapped by CandidateError so callers can use
// errors.Is for classification.
var ErrNoMatch = errors.New("no matching version")

// aliases that always resolve to the newest candidate under version order.
var latestAliases = map[string]bool{
	"latest":  true,
	"current": true,
	"lts":     true,
	"stable":  true,
}

// CandidateError reports a failed resolution together with every known
// candidate so the operator can correct the request. It wraps ErrNoMatch.
type CandidateError struct {
	Requested  string
	Candidates []string
}

// Error lists the full candidate set. The list is deliberately verbose:
// resolution failure is fatal and the set is the only diagnostic that helps.
func (e *CandidateError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no version matching %q (no candidates available)", e.Requested)
	}
	return fmt.Sprintf("no version matching %q; valid values are:\n  %s",
		e.Requested, strings.Join(e.Candidates, "\n  "))
}

// Unwrap returns ErrNoMatch so callers can use errors.Is.
func (e *CandidateError) Unwrap() error { return ErrNoMatch }

// ResolveTag picks a version from candidates (plain three-part version
// strings extracted from git tags) for the requested selector.
//
// Rules, in order:
//   - latest/current/lts/stable select the maximum under version-order
//     comparison, never lexical order.
//   - An exact candidate match wins.
//   - Otherwise the request may be a version prefix: "1.2" matches "1.2.3"
//     but never "1.20.1". Among prefix matches the newest wins.
//
// The selected value is re-validated against the candidate list before being
// returned. Anything else, including the skip sentinel "none" that callers
// are expected to intercept before resolution, fails with a CandidateError
// carrying the full sorted candidate set.
func ResolveTag(requested string, candidates []string) (string, error) {
	sorted := sortVersionsDesc(candidates)

	if latestAliases[strings.ToLower(requested)] {
		if len(sorted) == 0 {
			return "", &CandidateError{Requested: requested}
		}
		return sorted[0], nil
	}

	if slices.Contains(sorted, requested) {
		return requested, nil
	}

	// Prefix match: requested followed by a separator. sorted is descending,
	// so the first hit is the newest satisfying the constraint.
	for _, c := range sorted {
		if strings.HasPrefix(c, requested+".") {
			return c, nil
		}
	}

	return "", &CandidateError{Requested: requested, Candidates: sorted}
}

// sortVersionsDesc returns a copy of versions sorted descending by semantic
// version comparison. Values that are not valid semver sort to the end. The
// sort is stable so equal tags keep their input order.
func sortVersionsDesc(versions []string) []string {
	sorted := slices.Clone(versions)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return semver.Compare(canonical(b), canonical(a))
	})
	return sorted
}

// canonical prefixes "v" as required by the semver package.
func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
