// SPDX-License-Identifier: MPL-2.0

package hostpkg

import (
	"fmt"

	"dind-cli/internal/platform"
)

// Family is one of the two mutually exclusive engine/CLI package families.
type Family struct {
	// Name identifies the family in logs ("moby" or "docker-ce").
	Name string

	// EnginePkg and CLIPkg are the daemon and client package names.
	EnginePkg string
	CLIPkg    string

	// BuildxPkg and ComposePkg are optional companion plugin packages;
	// empty when the family has none. Their unavailability is non-fatal.
	BuildxPkg  string
	ComposePkg string

	// KeyURL is the ascii-armored repository signing key.
	KeyURL string

	// KeyringPath is where the dearmored key is installed.
	KeyringPath string

	// ListPath is the apt source-list file this family owns.
	ListPath string

	// repoLine builds the deb line for the host's os id and codename.
	repoLine func(h platform.Host) string
}

// MobyFamily is the open-source engine/CLI family served from the Microsoft
// package repository.
var MobyFamily = Family{
	Name:        "moby",
	EnginePkg:   "moby-engine",
	CLIPkg:      "moby-cli",
	BuildxPkg:   "moby-buildx",
	ComposePkg:  "moby-compose",
	KeyURL:      "https://packages.microsoft.com/keys/microsoft.asc",
	KeyringPath: "/usr/share/keyrings/microsoft-archive-keyring.gpg",
	ListPath:    "/etc/apt/sources.list.d/microsoft.list",
	repoLine: func(h platform.Host) string {
		return fmt.Sprintf(
			"deb [arch=%s signed-by=%s] https://packages.microsoft.com/repos/microsoft-%s-%s-prod %s main",
			h.Arch, "/usr/share/keyrings/microsoft-archive-keyring.gpg", h.OSID, h.Codename, h.Codename)
	},
}

// DockerCEFamily is the licensed engine/CLI family served from the upstream
// Docker repository.
var DockerCEFamily = Family{
	Name:        "docker-ce",
	EnginePkg:   "docker-ce",
	CLIPkg:      "docker-ce-cli",
	BuildxPkg:   "docker-buildx-plugin",
	ComposePkg:  "docker-compose-plugin",
	KeyURL:      "", // set per-OS below
	KeyringPath: "/usr/share/keyrings/docker-archive-keyring.gpg",
	ListPath:    "/etc/apt/sources.list.d/docker.list",
	repoLine: func(h platform.Host) string {
		return fmt.Sprintf(
			"deb [arch=%s signed-by=%s] https://download.docker.com/linux/%s %s stable",
			h.Arch, "/usr/share/keyrings/docker-archive-keyring.gpg", h.OSID, h.Codename)
	},
}

// SelectFamily picks the package family for the useMoby flag, binding
// OS-dependent fields to the detected host.
func SelectFamily(useMoby bool, h platform.Host) Family {
	if useMoby {
		return MobyFamily
	}
	f := DockerCEFamily
	f.KeyURL = fmt.Sprintf("https://download.docker.com/linux/%s/gpg", h.OSID)
	return f
}

// RepoLine returns the deb source line for the host.
func (f Family) RepoLine(h platform.Host) string {
	return f.repoLine(h)
}
