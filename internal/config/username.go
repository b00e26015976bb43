// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os/user"
)

// autoUsernameCandidates is the fixed priority list scanned when the
// requested username is auto/automatic.
var autoUsernameCandidates = []string{"vscode", "node", "codespace"}

// UserLookup abstracts account queries so username resolution is testable
// without real system accounts.
type UserLookup interface {
	// Exists reports whether the named account exists.
	Exists(name string) bool
	// ByUID returns the account name for the numeric uid, or "" if none.
	ByUID(uid string) string
}

// SystemUserLookup queries the real account database via os/user.
type SystemUserLookup struct{}

// Exists reports whether the named account exists.
func (SystemUserLookup) Exists(name string) bool {
	_, err := user.Lookup(name)
	return err == nil
}

// ByUID returns the account name for the numeric uid, or "" if none.
func (SystemUserLookup) ByUID(uid string) string {
	u, err := user.LookupId(uid)
	if err != nil {
		return ""
	}
	return u.Username
}

// ResolveUsername maps the requested username to a concrete existing
// account:
//
//   - auto/automatic: first existing account from the candidate list, then
//     whichever account holds uid 1000, then root.
//   - none: root.
//   - anything else: the named account if it exists, otherwise root.
func ResolveUsername(requested string, lookup UserLookup) string {
	switch requested {
	case "auto", "automatic":
		for _, candidate := range autoUsernameCandidates {
			if lookup.Exists(candidate) {
				return candidate
			}
		}
		if name := lookup.ByUID("1000"); name != "" {
			return name
		}
		return "root"
	case SkipSentinel, "":
		return "root"
	default:
		if lookup.Exists(requested) {
			return requested
		}
		return "root"
	}
}
