// Command pulse runs the supervised worker with the ops HTTP server.
package main

import (
	"os"

	"github.com/dmitrymomot/pulse/cmd/pulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
