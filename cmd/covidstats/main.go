// Package main is the entry point for the covidstats CLI.
package main

import (
	"os"

	"github.com/couchcryptid/covid-dashboard/cmd/covidstats/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
