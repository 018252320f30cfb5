// Command respipe-cli is a small interactive driver for the client
// package: enough to PING a server, run GET/SET, and tail a pub/sub
// channel from a terminal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
