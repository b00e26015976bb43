// SPDX-License-Identifier: MPL-2.0

package hostver

import (
	"regexp"
	"strings"
)

// TagScheme describes how a source repository encodes versions in its git
// tags: a fixed prefix ("v" for docker/compose) and the separator used
// between numeric components ("." almost everywhere).
type TagScheme struct {
	Prefix    string
	Separator string
}

// DefaultTagScheme covers v-prefixed dotted tags (v2.17.3).
var DefaultTagScheme = TagScheme{Prefix: "v", Separator: "."}

// ExtractVersions filters tags down to the ones following the scheme and
// returns their numeric version components with the separator normalized to
// the canonical dotted form. Order is preserved; callers sort.
func ExtractVersions(tags []string, scheme TagScheme) []string {
	sep := scheme.Separator
	if sep == "" {
		sep = "."
	}

	re := regexp.MustCompile(`^` + regexp.QuoteMeta(scheme.Prefix) +
		`(\d+(?:` + regexp.QuoteMeta(sep) + `\d+)*)$`)

	var versions []string
	for _, tag := range tags {
		m := re.FindStringSubmatch(tag)
		if m == nil {
			continue
		}
		versions = append(versions, strings.ReplaceAll(m[1], sep, "."))
	}
	return versions
}
