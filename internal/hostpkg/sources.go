// SPDX-License-Identifier: MPL-2.0

package hostpkg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"dind-cli/internal/platform"
)

// maxKeyBytes bounds the signing key download (1 MB); real keys are a few KB.
const maxKeyBytes = 1 << 20

// ConfigureRepository installs the family's signing key and writes its apt
// source list for the host, then refreshes the index so the new repository
// is visible. Both writes are idempotent overwrites.
func (r *Runner) ConfigureRepository(ctx context.Context, f Family, h platform.Host, httpClient *http.Client) error {
	if err := r.fetchSigningKey(ctx, f, httpClient); err != nil {
		return fmt.Errorf("configuring %s repository: %w", f.Name, err)
	}

	line := f.RepoLine(h) + "\n"
	if err := os.MkdirAll(filepath.Dir(f.ListPath), 0o755); err != nil {
		return fmt.Errorf("creating sources directory: %w", err)
	}
	if err := os.WriteFile(f.ListPath, []byte(line), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", f.ListPath, err)
	}

	return r.RefreshIndex(ctx)
}

// fetchSigningKey downloads the ascii-armored key and dearmors it into the
// family's keyring path via gpg.
func (r *Runner) fetchSigningKey(ctx context.Context, f Family, httpClient *http.Client) error {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.KeyURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating key request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching signing key: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching signing key: unexpected status %d", resp.StatusCode)
	}

	armored, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyBytes))
	if err != nil {
		return fmt.Errorf("reading signing key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.KeyringPath), 0o755); err != nil {
		return fmt.Errorf("creating keyring directory: %w", err)
	}

	return r.dearmor(ctx, armored, f.KeyringPath)
}

// dearmor pipes the armored key through gpg --dearmor into dst.
func (r *Runner) dearmor(ctx context.Context, armored []byte, dst string) error {
	// --yes so re-provisioning overwrites a stale keyring instead of failing.
	cmd := r.execCommand(ctx, "gpg", "--batch", "--yes", "--dearmor", "-o", dst)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening gpg stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting gpg: %w", err)
	}

	_, writeErr := stdin.Write(armored)
	closeErr := stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("gpg --dearmor: %w", err)
	}
	if writeErr != nil {
		return fmt.Errorf("writing key to gpg: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing gpg stdin: %w", closeErr)
	}
	return nil
}
