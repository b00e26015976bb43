// SPDX-License-Identifier: MPL-2.0

package hostpkg

import (
	"context"
	"fmt"
	"strconv"
)

// Alternative priorities for the docker-compose command name. The switch
// shim outranks the renamed v1 binary so plain `docker-compose` dispatches
// to the shim while v1 stays reachable at its renamed path.
const (
	ComposeSwitchPriority = 99
	ComposeV1Priority     = 1
)

// RegisterAlternative registers path as a priority-ranked provider of the
// command name at link via the host's alternatives mechanism.
func (r *Runner) RegisterAlternative(ctx context.Context, link, name, path string, priority int) error {
	err := r.run(ctx, "update-alternatives", "--install", link, name, path, strconv.Itoa(priority))
	if err != nil {
		return fmt.Errorf("registering alternative %s -> %s: %w", name, path, err)
	}
	return nil
}
