// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// gvmd is the Greenbone Vulnerability Manager daemon. It owns the
// manage database, keeps the security feeds current and authorises
// every request against the access rules stored alongside the data.
package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
)

func main() {
	os.Exit(Main(os.Args))
}

// Main runs the gvmd command with the given arguments and returns the
// process exit code.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(newGvmdCommand(), ctx, args[1:])
}
