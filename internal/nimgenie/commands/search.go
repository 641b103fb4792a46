package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimgenie/nimgenie/internal/nimgenie/store"
)

func searchCmd() *cobra.Command {
	var (
		symbolType string
		module     string
		limit      int
		path       string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Lexically search indexed symbols by substring match on name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePath(path)
			if err != nil {
				return err
			}
			results, err := coord.SearchSymbols(cmd.Context(), root, args[0], store.SearchFilter{
				SymbolType: symbolType,
				Module:     module,
				Limit:      limit,
			})
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().StringVar(&symbolType, "type", "", "Restrict to this symbol type (e.g. proc, type, macro)")
	cmd.Flags().StringVar(&module, "module", "", "Restrict to this module")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows to return")
	return cmd
}

func infoCmd() *cobra.Command {
	var (
		module string
		path   string
	)
	cmd := &cobra.Command{
		Use:   "info <name>",
		Short: "Look up full details for a symbol by exact name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePath(path)
			if err != nil {
				return err
			}
			results, err := coord.GetSymbolInfo(cmd.Context(), root, args[0], module)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().StringVar(&module, "module", "", "Restrict to this module")
	return cmd
}

func packagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages <query>",
		Short: "Lexically search the discovered Nimble package cache by base name substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(coord.SearchPackages(args[0]))
		},
	}
	return cmd
}
