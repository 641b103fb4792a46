package commands

import (
	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [path]",
		Short: "Fully re-index a Nim project: symbols, dependencies, and embeddings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := pathArg(args)
			if err != nil {
				return err
			}
			summary, err := coord.IndexCurrentProject(cmd.Context(), root)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"summary": summary})
		},
	}
}

func updateCmd() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "update [path]",
		Short: "Incrementally re-index changed files (or the given files)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := pathArg(args)
			if err != nil {
				return err
			}
			_, ix, _, err := coord.Project(cmd.Context(), root)
			if err != nil {
				return err
			}
			summary := ix.UpdateIndex(cmd.Context(), files)
			coord.ClearCache()
			return printJSON(map[string]string{"summary": summary})
		},
	}
	cmd.Flags().StringSliceVar(&files, "file", nil, "Explicit file(s) to re-index (default: mtime-based change detection)")
	return cmd
}

func depsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps [path]",
		Short: "Re-parse only the file dependency graph, without re-indexing symbols",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := pathArg(args)
			if err != nil {
				return err
			}
			ok, err := coord.IndexProjectDependenciesOnly(cmd.Context(), root)
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"success": ok})
		},
	}
}
