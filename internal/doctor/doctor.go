// SPDX-License-Identifier: MPL-2.0

// Package doctor verifies a provisioned environment after the fact: it finds
// the daemon socket, pings the daemon, and reports what answered.
package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"dind-cli/internal/issue"

	"github.com/docker/docker/client"
)

// pingTimeout bounds the daemon probe so a hung daemon produces a diagnosis
// instead of a stuck command.
const pingTimeout = 5 * time.Second

// defaultSocketPath is the daemon socket written by a standard engine install.
const defaultSocketPath = "/var/run/docker.sock"

// Report is the outcome of one verification run.
type Report struct {
	// Host is the daemon address that answered.
	Host string
	// APIVersion is the negotiated API version.
	APIVersion string
	// OSType is the daemon-reported operating system type.
	OSType string
}

// Check locates the daemon and pings it. DOCKER_HOST wins when set;
// otherwise the standard socket path is probed.
func Check(ctx context.Context) (Report, error) {
	host, err := detectHost()
	if err != nil {
		return Report{}, err
	}

	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return Report{}, fmt.Errorf("creating daemon client for %s: %w", host, err)
	}
	defer func() { _ = c.Close() }() // idempotent per SDK contract

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ping, err := c.Ping(pingCtx)
	if err != nil {
		return Report{}, issue.NewErrorContext().
			WithOperation("ping daemon").
			WithResource(host).
			WithSuggestion("Start the daemon with `dindctl init` or check its log at /tmp/dockerd.log").
			Wrap(err).
			BuildError()
	}

	return Report{
		Host:       host,
		APIVersion: ping.APIVersion,
		OSType:     ping.OSType,
	}, nil
}

// detectHost resolves the daemon address: DOCKER_HOST when set, otherwise
// the standard socket path, which must exist.
func detectHost() (string, error) {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return host, nil
	}

	if _, err := os.Stat(defaultSocketPath); err != nil {
		return "", issue.NewErrorContext().
			WithOperation("locate daemon socket").
			WithResource(defaultSocketPath).
			WithSuggestion("Run `dindctl init` to start the daemon").
			WithSuggestion("Or point DOCKER_HOST at a reachable daemon").
			Wrap(err).
			BuildError()
	}
	return "unix://" + defaultSocketPath, nil
}
