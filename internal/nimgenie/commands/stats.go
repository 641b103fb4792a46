package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nimgenie/nimgenie/internal/nimgenie/store"
	"github.com/nimgenie/nimgenie/internal/nimgenie/toolchain"
	"github.com/nimgenie/nimgenie/pkg/output"
)

func statsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "stats [path]",
		Short: "Report symbol, module, dependency, and tracked-file counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePathArgs(args, path)
			if err != nil {
				return err
			}
			st, _, _, err := coord.Project(cmd.Context(), root)
			if err != nil {
				return err
			}
			return printResult(st.GetProjectStats(cmd.Context()), printProjectStats)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	return cmd
}

// printProjectStats renders ProjectStats as human-readable text, used as
// the --json=false fallback for "nimgenie stats".
func printProjectStats(w io.Writer, v interface{}) {
	stats := v.(store.ProjectStats)
	f := output.New(false, false, w)
	f.PrintSection("Project stats")
	f.PrintLine("symbols", stats.TotalSymbols)
	f.PrintLine("modules", stats.TotalModules)
	f.PrintLine("dependencies", stats.TotalDeps)
	f.PrintLine("files tracked", stats.FilesTracked)
	f.PrintLine("bytes tracked", humanize.Bytes(uint64(stats.TotalBytesTracked)))
	for t, c := range stats.SymbolsByType {
		f.PrintLine("  "+t, c)
	}
}

func embeddingStatsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "embedding-stats [path]",
		Short: "Report embedding coverage across indexed symbols",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePathArgs(args, path)
			if err != nil {
				return err
			}
			st, _, _, err := coord.Project(cmd.Context(), root)
			if err != nil {
				return err
			}
			return printResult(st.GetEmbeddingStats(cmd.Context()), printEmbeddingStats)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	return cmd
}

func printEmbeddingStats(w io.Writer, v interface{}) {
	stats := v.(store.EmbeddingStats)
	f := output.New(false, false, w)
	f.PrintSection("Embedding coverage")
	f.PrintLine("symbols", stats.TotalSymbols)
	f.PrintLine("embedded", stats.EmbeddedSymbols)
	f.PrintLine("coverage", fmt.Sprintf("%.1f%%", stats.CoveragePercent))
}

func checkCmd() *cobra.Command {
	var (
		path string
		file string
	)
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Run the compiler's semantic check against a file, or the project's main file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePathArgs(args, path)
			if err != nil {
				return err
			}
			_, _, driver, err := coord.Project(cmd.Context(), root)
			if err != nil {
				return err
			}
			target := file
			if target == "" {
				main, ok := driver.FindMainFile()
				if !ok {
					return fmt.Errorf("no file given and no main file could be located")
				}
				target = main
			}
			return printResult(checkOutcome{target, driver.Check(cmd.Context(), target)}, printCheckResult)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().StringVar(&file, "file", "", "File to check (default: the project's detected main file)")
	return cmd
}

// checkOutcome pairs a Check result with the file path it ran against, so
// the text renderer can show it relative to the caller's cwd.
type checkOutcome struct {
	file   string
	result toolchain.Result
}

func printCheckResult(w io.Writer, v interface{}) {
	outcome := v.(checkOutcome)
	f := output.New(false, false, w)
	f.PrintSection("Syntax check: " + output.RelativePathCwd(outcome.file))
	f.PrintLine("status", outcome.result.Status)
	f.PrintLine("exit code", outcome.result.ExitCode)
	if outcome.result.Output != "" {
		fmt.Fprintln(w, outcome.result.Output)
	}
}
