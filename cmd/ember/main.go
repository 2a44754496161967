// Package main provides the ember CLI tool for exploring half-life
// scoring and rate-limit behavior offline.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
