// Package commands implements the rf24node CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// Version is the CLI version reported by --version.
var Version = "0.1.0"

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rf24node",
		Short: "RF24Node network endpoint tools",
		Long: `rf24node runs endpoints of a tree-structured RF24 radio network and
inspects their traffic.

Nodes are addressed statically or lease an address from the lease server
running on their root node.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newNodeCommand())
	root.AddCommand(newSimCommand())
	root.AddCommand(newDecodeCommand())
	root.AddCommand(newLogCommand())
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}
