// SPDX-License-Identifier: MPL-2.0

package hostver

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveTag_LatestUsesVersionOrder(t *testing.T) {
	t.Parallel()

	// Lexical order would pick 1.9.0 here; version order must pick 1.10.0.
	candidates := []string{"1.9.0", "1.10.0", "1.2.0"}

	for _, alias := range []string{"latest", "current", "lts", "LATEST"} {
		got, err := ResolveTag(alias, candidates)
		if err != nil {
			t.Fatalf("ResolveTag(%q) unexpected error: %v", alias, err)
		}
		if got != "1.10.0" {
			t.Errorf("ResolveTag(%q) = %q, want %q", alias, got, "1.10.0")
		}
	}
}

func TestResolveTag_ExactMatch(t *testing.T) {
	t.Parallel()

	got, err := ResolveTag("2.17.2", []string{"2.17.3", "2.17.2", "2.16.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2.17.2" {
		t.Errorf("got %q, want exact match 2.17.2", got)
	}
}

func TestResolveTag_PrefixPicksNewest(t *testing.T) {
	t.Parallel()

	candidates := []string{"1.2.1", "1.20.1", "1.2.3", "1.2.2"}

	got, err := ResolveTag("1.2", candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// "1.2" must match 1.2.x only, never 1.20.1, and prefer the newest.
	if got != "1.2.3" {
		t.Errorf("got %q, want %q", got, "1.2.3")
	}
}

func TestResolveTag_PrefixOfExactlyOne(t *testing.T) {
	t.Parallel()

	got, err := ResolveTag("2.16", []string{"2.17.3", "2.16.0", "2.15.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2.16.0" {
		t.Errorf("got %q, want %q", got, "2.16.0")
	}
}

func TestResolveTag_NoMatchListsCandidates(t *testing.T) {
	t.Parallel()

	_, err := ResolveTag("3.0", []string{"2.17.3", "2.16.0"})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("error = %v, want ErrNoMatch", err)
	}

	var ce *CandidateError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a *CandidateError", err)
	}
	if len(ce.Candidates) != 2 {
		t.Errorf("candidate list has %d entries, want 2", len(ce.Candidates))
	}
	if !strings.Contains(err.Error(), "2.17.3") || !strings.Contains(err.Error(), "2.16.0") {
		t.Errorf("error message must enumerate all candidates:\n%s", err)
	}
}

func TestResolveTag_SkipSentinelFails(t *testing.T) {
	t.Parallel()

	// "none" bypasses resolution in the installer; if it reaches the
	// resolver anyway it must fail loudly, never silently substitute.
	_, err := ResolveTag("none", []string{"2.17.3"})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("ResolveTag(none) error = %v, want ErrNoMatch", err)
	}
}

func TestResolveTag_EmptyCandidates(t *testing.T) {
	t.Parallel()

	if _, err := ResolveTag("latest", nil); !errors.Is(err, ErrNoMatch) {
		t.Errorf("latest over empty set: error = %v, want ErrNoMatch", err)
	}
}

func TestResolveDeb_PrefixWithEpochAndRevision(t *testing.T) {
	t.Parallel()

	available := []string{
		"5:24.0.2-1~ubuntu.22.04~jammy",
		"5:24.0.1-1~ubuntu.22.04~jammy",
		"5:23.0.6-1~ubuntu.22.04~jammy",
	}

	got, err := ResolveDeb("24.0", available)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First match in the tool's own preference order.
	if got != "5:24.0.2-1~ubuntu.22.04~jammy" {
		t.Errorf("got %q", got)
	}
}

func TestResolveDeb_NoFalsePrefix(t *testing.T) {
	t.Parallel()

	// "24" must not match 240.x or 24x.y style versions.
	_, err := ResolveDeb("24", []string{"240.1-1", "2.4.0-1"})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("error = %v, want ErrNoMatch", err)
	}
}

func TestResolveDeb_LatestTakesFirst(t *testing.T) {
	t.Parallel()

	got, err := ResolveDeb("latest", []string{"5:24.0.2-1", "5:23.0.6-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "5:24.0.2-1" {
		t.Errorf("got %q, want the tool-preferred first entry", got)
	}
}

func TestResolveDeb_NoMatchListsAvailable(t *testing.T) {
	t.Parallel()

	_, err := ResolveDeb("99.9", []string{"5:24.0.2-1", "5:23.0.6-1"})
	var ce *CandidateError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a *CandidateError", err)
	}
	if len(ce.Candidates) != 2 {
		t.Errorf("candidates = %v, want both available versions", ce.Candidates)
	}
}

func TestExtractVersions_DefaultScheme(t *testing.T) {
	t.Parallel()

	tags := []string{"v2.17.3", "v2.17.0-rc.1", "docs", "v1.0.4", "2.0.0"}

	got := ExtractVersions(tags, DefaultTagScheme)
	want := []string{"2.17.3", "1.0.4"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExtractVersions_CustomSeparator(t *testing.T) {
	t.Parallel()

	got := ExtractVersions([]string{"rel_1_2_3", "rel_1_3_0", "v1.0.0"},
		TagScheme{Prefix: "rel_", Separator: "_"})
	if len(got) != 2 || got[0] != "1.2.3" || got[1] != "1.3.0" {
		t.Errorf("got %v, want [1.2.3 1.3.0]", got)
	}
}
