// Package main provides the entry point for the gitpkgs CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang/cmd/gitpkgs/commands"
	"github.com/Sumatoshi-tech/codefang/pkg/gperrors"
	"github.com/Sumatoshi-tech/codefang/pkg/render"
	"github.com/Sumatoshi-tech/codefang/pkg/version"
)

func main() {
	globals := commands.Bind()

	rootCmd := &cobra.Command{
		Use:   "gitpkgs",
		Short: "Index and query a git repository's dependency-manifest history",
		Long: `gitpkgs builds a queryable index of how a repository's dependency
manifests (go.mod, package.json, Cargo.toml, and friends) changed over
its commit history, then answers questions about that history without
re-walking the repository each time.

Commands:
  init      Build the dependency-history index from scratch
  update    Advance the index to the branch's current tip
  list      List dependencies at a commit
  history   Show the change history of a dependency
  blame     Show which commit introduced each dependency's current requirement
  stale     List dependencies ordered by how long since they last changed
  stats     Show dependency-change count aggregations
  diff      Show dependency changes between two commits
  show      Show dependency changes recorded at a single commit
  where     Locate a dependency in the current working tree's manifests
  log       List commits with recorded dependency changes
  info      Show index status and row counts
  upgrade   Upgrade the on-disk store schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().BoolVar(&globals.NoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().StringVar(&globals.Format, "format", "table", "output format: table or json")

	rootCmd.AddCommand(
		commands.NewInitCommand(),
		commands.NewUpdateCommand(),
		commands.NewListCommand(),
		commands.NewHistoryCommand(),
		commands.NewBlameCommand(),
		commands.NewStaleCommand(),
		commands.NewStatsCommand(),
		commands.NewDiffCommand(),
		commands.NewShowCommand(),
		commands.NewWhereCommand(),
		commands.NewLogCommand(),
		commands.NewInfoCommand(),
		commands.NewUpgradeCommand(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		format := render.FormatTable
		if globals.Format == "json" {
			format = render.FormatJSON
		}

		kind, ok := gperrors.KindOf(err)
		if !ok {
			kind = "internal"
		}

		render.Error(os.Stderr, render.Options{Format: format}, string(kind), err.Error())
		os.Exit(gperrors.ExitCode(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitpkgs %s (commit: %s, built: %s, schema: v%d)\n",
				version.Version, version.Commit, version.Date, version.SchemaVersion)
		},
	}
}
