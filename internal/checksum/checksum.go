// SPDX-License-Identifier: MPL-2.0

// Package checksum verifies downloaded release artifacts against their
// co-published sha256 checksum files before they are moved into place.
package checksum

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrMismatch indicates the computed SHA256 hash does not match the published hash.
	ErrMismatch = errors.New("checksum mismatch")

	// ErrArtifactNotListed indicates the artifact filename was not found in the checksum file.
	ErrArtifactNotListed = errors.New("artifact not listed in checksum file")

	// errNoValidEntries indicates the checksum file contained no parseable entries.
	errNoValidEntries = errors.New("no valid checksum entries found")
)

type (
	// Entry is one line of a sha256sum-format checksum file.
	Entry struct {
		Hash     string // Hex-encoded SHA256 hash (64 characters, lowercased)
		Filename string // Artifact filename this hash applies to
	}

	// MismatchError details a verification failure. It wraps ErrMismatch so
	// callers can classify with errors.Is.
	MismatchError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error shows both hash values; the mismatch is fatal and these are the only
// useful diagnostics.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s",
		e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrMismatch so callers can use errors.Is.
func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Parse reads a checksum file in the standard sha256sum output format:
// "{sha256_hex}  {filename}" with two spaces between hash and filename.
// Malformed lines are skipped; a file with zero valid entries is an error.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		hash, filename, found := strings.Cut(line, "  ")
		if !found {
			continue
		}
		filename = strings.TrimSpace(filename)

		if filename == "" || !isHexHash(hash) {
			continue
		}

		entries = append(entries, Entry{
			Hash:     strings.ToLower(hash),
			Filename: filename,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksum file: %w", err)
	}

	if len(entries) == 0 {
		return nil, errNoValidEntries
	}

	return entries, nil
}

// Expected returns the published hash for filename, or ErrArtifactNotListed.
func Expected(entries []Entry, filename string) (string, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrArtifactNotListed, filename)
}

// VerifyFile streams the file at path through SHA256 and compares the digest
// with expectedHash (case-insensitive). A differing digest returns a
// *MismatchError wrapping ErrMismatch.
func VerifyFile(path, expectedHash string) error {
	got, err := FileDigest(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHash) {
		return &MismatchError{
			Filename: path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}

	return nil
}

// VerifyAgainst parses a checksum file and verifies the artifact at path
// against the entry for filename. This is the common combined flow: the
// checksum file is tiny and fetched before the artifact itself.
func VerifyAgainst(path, filename string, checksums io.Reader) error {
	entries, err := Parse(checksums)
	if err != nil {
		return fmt.Errorf("parsing checksum file: %w", err)
	}

	expected, err := Expected(entries, filename)
	if err != nil {
		return err
	}

	return VerifyFile(path, expected)
}

// FileDigest returns the lowercase hex-encoded SHA256 digest of the file at
// path, streaming rather than loading it into memory.
func FileDigest(path string) (_ string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// isHexHash checks that s is a 64-character hex string.
func isHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
