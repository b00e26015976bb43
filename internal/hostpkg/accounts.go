// SPDX-License-Identifier: MPL-2.0

package hostpkg

import (
	"context"
	"fmt"
	"os/user"
)

// EnsureGroup creates the named system group if it does not already exist.
func (r *Runner) EnsureGroup(ctx context.Context, name string) error {
	if _, err := user.LookupGroup(name); err == nil {
		r.logger.Debug("group already exists", "group", name)
		return nil
	}

	if err := r.run(ctx, "groupadd", "--system", name); err != nil {
		return fmt.Errorf("creating group %s: %w", name, err)
	}
	return nil
}

// AddUserToGroup appends the user to the group's member list. Adding an
// existing member is a no-op for usermod, so this is idempotent.
func (r *Runner) AddUserToGroup(ctx context.Context, username, group string) error {
	if username == "root" {
		// root does not need group membership to reach the socket.
		return nil
	}
	if err := r.run(ctx, "usermod", "-aG", group, username); err != nil {
		return fmt.Errorf("adding %s to group %s: %w", username, group, err)
	}
	return nil
}
