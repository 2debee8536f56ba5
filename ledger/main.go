// Command ledger imports bank statements into a plain text ledger file.
package main

import (
	"os"

	"github.com/plenert/ledger/ledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
