// Command fieldworkd serves the job lifecycle API.
//
// Usage:
//
//	fieldworkd serve --config fieldwork.yaml
//	fieldworkd migrate
//	fieldworkd version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
