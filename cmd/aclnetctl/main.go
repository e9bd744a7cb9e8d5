// Command aclnetctl is a small CLI that exercises the httpcore client core
// directly: fetching URLs through the retry/auth loop, managing the auth
// policy, and inspecting the persistent cookie jar and audit ledger.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
