// Command voicefill extracts travel-plan form fields from Chinese
// transcripts. "voicefill serve" runs the HTTP and WebSocket server;
// "voicefill parse" extracts a single transcript from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "voicefill: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voicefill",
		Short:         "Fill travel-plan forms from spoken Chinese",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newParseCmd())
	return root
}
