// Package main is the entry point for the simple repository server.
package main

import (
	"os"

	"github.com/simpleindex/simple-repository-server/cmd/simple-repository-server/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
