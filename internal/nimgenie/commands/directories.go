package commands

import (
	"github.com/spf13/cobra"

	"github.com/nimgenie/nimgenie/pkg/output"
)

func registerDirectoryCmd() *cobra.Command {
	var (
		path        string
		name        string
		description string
	)
	cmd := &cobra.Command{
		Use:   "register-directory <directory>",
		Short: "Register an external directory as a named resource alongside the indexed project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePath(path)
			if err != nil {
				return err
			}
			ok, err := coord.RegisterDirectory(cmd.Context(), root, args[0], name, description)
			if err != nil {
				return err
			}
			return printJSON(output.FilterEmpty(map[string]interface{}{
				"success":     ok,
				"directory":   args[0],
				"name":        name,
				"description": description,
			}))
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().StringVar(&name, "name", "", "Short name for the registered directory")
	cmd.Flags().StringVar(&description, "description", "", "Optional free-text description")
	cmd.MarkFlagRequired("name")
	return cmd
}

func listDirectoriesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "directories [path]",
		Short: "List every directory registered against the project's store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePathArgs(args, path)
			if err != nil {
				return err
			}
			dirs, err := coord.ListRegisteredDirectories(cmd.Context(), root)
			if err != nil {
				return err
			}
			return printJSON(dirs)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	return cmd
}
