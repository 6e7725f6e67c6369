// Command gate runs the route guarding edge server and offers session
// commands against the configured auth service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gate",
		Short: "Session aware route guard and auth client",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("gate version %s\n", version))

	root.AddCommand(newServeCmd())
	root.AddCommand(newSessionCmd())
	return root
}
