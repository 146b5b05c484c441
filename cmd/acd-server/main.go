// Package main is the acd-registry server. It serves the investigation API
// and can run schema migration or load the demo dataset on its own.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	// glog is only used for fatal start-up errors
	_ = flag.Set("logtostderr", "true")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
