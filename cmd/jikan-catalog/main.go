// Package main is the entry point for the jikan-catalog CLI.
package main

import (
	"github.com/Sternrassler/jikan-catalog/cmd/jikan-catalog/cmd"
)

func main() {
	cmd.Execute()
}
