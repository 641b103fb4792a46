// Package commands implements the nimgenie CLI, a thin cobra front end
// over the same Coordinator the MCP server dispatches to, mirroring the
// upstream llm-semantic/llm-filesystem binaries' split between a cobra
// root command and an MCP server entry point sharing one core package.
package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
	"github.com/nimgenie/nimgenie/internal/nimgenie/coordinator"
	"github.com/nimgenie/nimgenie/pkg/output"
)

var (
	configPath string
	jsonOutput bool
	minOutput  bool

	cfg   config.Config
	coord *coordinator.Coordinator
)

// RootCmd returns the root command for nimgenie.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nimgenie",
		Short:         "Index and search a Nim workspace's symbols, dependencies, and embeddings",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			coord = coordinator.New(cfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a nimgenie.yaml config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", true, "Pretty-print output as JSON")
	rootCmd.PersistentFlags().BoolVar(&minOutput, "min", false, "Minimal/token-optimized JSON (abbreviated keys, single line)")

	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(depsCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(semanticSearchCmd())
	rootCmd.AddCommand(similarCmd())
	rootCmd.AddCommand(exampleCmd())
	rootCmd.AddCommand(embedCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(embeddingStatsCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(packagesCmd())
	rootCmd.AddCommand(registerDirectoryCmd())
	rootCmd.AddCommand(listDirectoriesCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

// formatter builds the Formatter for the currently parsed --json/--min
// flags; every command-facing print helper funnels through one of these.
func formatter() *output.Formatter {
	return output.New(jsonOutput, minOutput, os.Stdout)
}

// printJSON writes v to stdout via a Formatter, honoring --min for
// abbreviated single-line output; most subcommands funnel their result
// through here.
func printJSON(v interface{}) error {
	return formatter().Print(v, nil)
}

// printResult writes v via a Formatter, using textFunc for human-readable
// output when --json=false; falls back to JSON otherwise.
func printResult(v interface{}, textFunc func(io.Writer, interface{})) error {
	return formatter().Print(v, textFunc)
}

// HandleError formats err according to the active --json/--min flags and
// returns the process exit code, mirroring the upstream cmd/llm-semantic
// binary's os.Exit(f.PrintError(err)).
func HandleError(err error) int {
	return formatter().PrintError(err)
}

// pathArg returns args[0] if given, else the current directory.
func pathArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return os.Getwd()
}

// resolvePath returns explicit if set, else the current directory.
func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return os.Getwd()
}

// resolvePathArgs prefers an explicit --path flag, falling back to the
// positional arg (if given) and finally the current directory.
func resolvePathArgs(args []string, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return pathArg(args)
}
