// SPDX-License-Identifier: MPL-2.0

// Command lodestone installs a game version from its version manifest.
package main

import cmd "github.com/lodestone/lodestone/cmd/lodestone"

func main() {
	cmd.Execute()
}
