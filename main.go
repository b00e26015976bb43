// SPDX-License-Identifier: MPL-2.0

package main

import cmd "dind-cli/cmd/dindctl"

func main() {
	cmd.Execute()
}
