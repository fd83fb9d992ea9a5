// Command envelopes-worker consumes ledger events and keeps the exported
// spreadsheet current. It accepts the same global flags as envelopes.
package main

import (
	"os"

	"envelopes/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(append([]string{"worker"}, os.Args[1:]...))
	os.Exit(cli.Execute(cmd))
}
