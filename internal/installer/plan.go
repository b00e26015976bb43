// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

// Step is one unit of provisioning work. The BestEffort flag is the explicit
// essential-vs-best-effort classification for every network or host mutation
// the provisioner performs: best-effort steps log their failure and let the
// run continue, everything else fails fast.
type Step struct {
	Name       string
	BestEffort bool
	Run        func(ctx context.Context) error
}

// execute runs the steps in order, stopping at the first essential failure.
// There is no retry and no rollback: provisioning happens in a disposable
// build context where failure means rebuild, not repair.
func execute(ctx context.Context, logger *log.Logger, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("provisioning canceled before %q: %w", step.Name, err)
		}

		err := step.Run(ctx)
		if err == nil {
			continue
		}

		if step.BestEffort {
			logger.Warn("continuing after best-effort step failure", "step", step.Name, "err", err)
			continue
		}
		return fmt.Errorf("%s: %w", step.Name, err)
	}
	return nil
}
