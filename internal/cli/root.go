// Package cli wires together the stratumctl root Cobra command.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"stratum/internal/cli/commands"
)

// NewRootCommand constructs the stratumctl root Cobra command, wiring the
// `graph` and `sendstream` subcommand groups.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("STRATUM_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "stratumctl",
		Short:         "stratumctl – feature depgraph and btrfs sendstream tooling",
		Long:          "stratumctl builds and verifies feature dependency graphs, and parses/upgrades btrfs send streams.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the stratumctl version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("stratumctl version " + version)
		},
	})

	// Subcommands registered in lexicographic order by .Use for
	// deterministic help output.
	cmd.AddCommand(commands.NewGraphCommand())
	cmd.AddCommand(commands.NewSendstreamCommand())

	return cmd
}
