// Command rf24node runs and inspects RF24Node network endpoints.
//
// Usage:
//
//	rf24node <command> [flags]
//
// Commands:
//
//	node     Run one endpoint over a UDP or serial link
//	sim      Simulate a network topology in memory
//	decode   Decode hex-encoded packets
//	log      View, export and summarise protocol log files
//
// Examples:
//
//	# Run a root node with an interactive shell
//	rf24node node -c root.yaml --interactive
//
//	# Simulate the default six-node tree
//	rf24node sim topology.yaml
//
//	# Decode a captured packet
//	rf24node decode 010001000000010068656c6c6f
//
//	# Show statistics of a protocol log
//	rf24node log stats node.cbor
package main

import (
	"fmt"
	"os"

	"github.com/rf24node/rf24node-go/cmd/rf24node/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
