// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"testing"
)

func TestComposeArch_SupportedTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arch string
		want string
	}{
		{"amd64", "x86_64"},
		{"arm64", "aarch64"},
	}

	for _, tt := range tests {
		got, err := ComposeArch(tt.arch)
		if err != nil {
			t.Errorf("ComposeArch(%q) unexpected error: %v", tt.arch, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ComposeArch(%q) = %q, want %q", tt.arch, got, tt.want)
		}
	}
}

func TestComposeArch_RejectsUnknownTokens(t *testing.T) {
	t.Parallel()

	for _, arch := range []string{"i386", "armhf", "riscv64", "", "x86_64"} {
		_, err := ComposeArch(arch)
		if !errors.Is(err, ErrUnsupportedArch) {
			t.Errorf("ComposeArch(%q) error = %v, want ErrUnsupportedArch", arch, err)
		}
	}
}

func TestIsReferenceArch(t *testing.T) {
	t.Parallel()

	if !IsReferenceArch("amd64") {
		t.Error("amd64 should be the reference architecture")
	}
	if IsReferenceArch("arm64") {
		t.Error("arm64 must not be treated as the reference architecture")
	}
}

func TestParseOSRelease_Quoted(t *testing.T) {
	t.Parallel()

	data := []byte(`PRETTY_NAME="Ubuntu 22.04.3 LTS"
NAME="Ubuntu"
ID=ubuntu
ID_LIKE=debian
VERSION_CODENAME=jammy
`)

	id, codename, err := parseOSRelease(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "ubuntu" {
		t.Errorf("id = %q, want %q", id, "ubuntu")
	}
	if codename != "jammy" {
		t.Errorf("codename = %q, want %q", codename, "jammy")
	}
}

func TestParseOSRelease_MissingID(t *testing.T) {
	t.Parallel()

	_, _, err := parseOSRelease([]byte("VERSION_CODENAME=bookworm\n"))
	if err == nil {
		t.Fatal("expected error for os-release without ID")
	}
}

func TestParseOSRelease_SkipsCommentsAndBlank(t *testing.T) {
	t.Parallel()

	data := []byte("# generated\n\nID='debian'\nVERSION_CODENAME=bookworm\n")

	id, codename, err := parseOSRelease(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "debian" || codename != "bookworm" {
		t.Errorf("got (%q, %q), want (debian, bookworm)", id, codename)
	}
}
