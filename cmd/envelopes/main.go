package main

import (
	"os"

	"envelopes/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewRootCommand()))
}
