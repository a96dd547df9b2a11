// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/modulebox/modulebox/cmd/modulebox"

func main() {
	cmd.Execute()
}
