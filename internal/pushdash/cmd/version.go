package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/server"
)

var (
	// Version is the semantic version of pushdash
	Version = "dev"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show pushdash version",
	Long:  `Display the version information for pushdash.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pushdash version %s\n", Version)
		fmt.Fprintf(out, "commit: %s\n", GitCommit)
		fmt.Fprintf(out, "built: %s\n", BuildTime)
	},
}

func init() {
	server.Version = Version
	rootCmd.AddCommand(versionCmd)
}
