// SPDX-License-Identifier: MPL-2.0

package dockerd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// delegatedControllers are enabled for child groups once the root's own
// processes have moved out of it. dockerd needs these to place container
// resource limits.
const delegatedControllers = "+cpu +cpuset +io +memory +pids"

// delegateCgroupV2 prepares the unified cgroup hierarchy for nested
// containers: the root group may not both hold processes and delegate
// controllers, so every process is first migrated into a leaf "init" group.
// On a v1 (or absent) hierarchy this is a silent no-op.
func (r *Runtime) delegateCgroupV2() error {
	if !cgroupV2Mounted(r.cgroupRoot) {
		r.logger.Debug("cgroup v2 not mounted, skipping delegation")
		return nil
	}

	initGroup := filepath.Join(r.cgroupRoot, "init")
	if err := os.Mkdir(initGroup, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("creating init cgroup: %w", err)
	}

	if err := migrateProcs(filepath.Join(r.cgroupRoot, "cgroup.procs"),
		filepath.Join(initGroup, "cgroup.procs")); err != nil {
		return err
	}

	control := filepath.Join(r.cgroupRoot, "cgroup.subtree_control")
	if err := os.WriteFile(control, []byte(delegatedControllers), 0o644); err != nil {
		return fmt.Errorf("enabling controllers: %w", err)
	}
	return nil
}

// cgroupV2Mounted reports whether root carries a unified (v2) hierarchy,
// identified by its cgroup.controllers file.
func cgroupV2Mounted(root string) bool {
	_, err := os.Stat(filepath.Join(root, "cgroup.controllers"))
	return err == nil
}

// migrateProcs moves every pid listed in src into dst. Each pid is written
// individually: processes can exit between the read and the write, and a
// vanished pid must not abort the migration of the rest.
func migrateProcs(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading root cgroup procs: %w", err)
	}

	for _, pid := range strings.Fields(string(data)) {
		// A pid can exit between the read and the write (ESRCH); skip it and
		// migrate the rest.
		_ = os.WriteFile(dst, []byte(pid), 0o644) //nolint:errcheck
	}
	return nil
}
