// Command chat runs the chat API server and talks to it from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "chat",
		Short:         "Conversational chat service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand())
	addClientCommands(root)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
