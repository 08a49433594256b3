// Package main is the entry point for the matchstats CLI, which derives
// roster stats from CS2 recordings and delivers each match exactly once.
package main

import "github.com/pable/go-cs-matchstats/cmd"

func main() {
	cmd.Execute()
}
