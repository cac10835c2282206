// SPDX-License-Identifier: MPL-2.0

// Command zephyr is a security-gated module manager for shell configuration.
package main

import cmd "github.com/zephyr-sh/zephyr/cmd/zephyr"

func main() {
	cmd.Execute()
}
