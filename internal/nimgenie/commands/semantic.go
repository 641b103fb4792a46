package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimgenie/nimgenie/internal/nimgenie/embedding"
	"github.com/nimgenie/nimgenie/internal/nimgenie/store"
)

// newEmbedder builds a query-time embedding client from the loaded
// config, separate from each project's own Indexer-owned embedder.
func newEmbedder() *embedding.Client {
	embCfg := embedding.DefaultConfig()
	embCfg.BaseURL = cfg.EmbeddingBaseURL
	embCfg.Model = cfg.EmbeddingModel
	embCfg.Dimension = cfg.EmbeddingDimension
	return embedding.New(embCfg)
}

func semanticSearchCmd() *cobra.Command {
	var (
		path  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "semantic-search <query>",
		Short: "Search indexed symbols by meaning via combined-embedding cosine similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePath(path)
			if err != nil {
				return err
			}
			st, _, _, err := coord.Project(cmd.Context(), root)
			if err != nil {
				return err
			}
			res := newEmbedder().EmbedCombined(cmd.Context(), "", "", args[0])
			if !res.Success {
				return fmt.Errorf("embedding failed: %s", res.Error)
			}
			results := st.SemanticSearchSymbols(cmd.Context(), res.Embedding, store.SearchFilter{Limit: limit})
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows to return")
	return cmd
}

func similarCmd() *cobra.Command {
	var (
		path   string
		module string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "similar <name>",
		Short: "Find symbols whose combined embedding is closest to a named symbol's",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePath(path)
			if err != nil {
				return err
			}
			st, _, _, err := coord.Project(cmd.Context(), root)
			if err != nil {
				return err
			}
			matches, err := st.GetSymbolInfo(cmd.Context(), args[0], module)
			if err != nil {
				return err
			}
			target := matches[0]
			if len(target.CombinedEmbedding) == 0 {
				return fmt.Errorf("%s has no combined embedding; run 'nimgenie embed' first", args[0])
			}
			results := st.FindSimilarByEmbedding(cmd.Context(), target.CombinedEmbedding, target.ID, limit)
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().StringVar(&module, "module", "", "Restrict the lookup to this module")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows to return")
	return cmd
}

func exampleCmd() *cobra.Command {
	var (
		path  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "example <snippet>",
		Short: "Find symbols similar to an arbitrary code snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolvePath(path)
			if err != nil {
				return err
			}
			st, _, _, err := coord.Project(cmd.Context(), root)
			if err != nil {
				return err
			}
			res := newEmbedder().EmbedCombined(cmd.Context(), "", args[0], "")
			if !res.Success {
				return fmt.Errorf("embedding failed: %s", res.Error)
			}
			results := st.FindSimilarByEmbedding(cmd.Context(), res.Embedding, -1, limit)
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows to return")
	return cmd
}

func embedCmd() *cobra.Command {
	var (
		path    string
		types   []string
		modules []string
	)
	cmd := &cobra.Command{
		Use:   "embed [path]",
		Short: "Recompute and store embedding vectors for symbols matching the given filters",
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
			updated := regenerateEmbeddings(cmd.Context(), st, types, modules)
			coord.ClearCache()
			return printJSON(map[string]int{"symbolsUpdated": updated})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Project root directory (default: current directory)")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Restrict to these symbol types")
	cmd.Flags().StringSliceVar(&modules, "module", nil, "Restrict to these modules")
	return cmd
}

// regenerateEmbeddings recomputes every embedding column for symbols
// matching the cartesian product of type/module filters, deduplicating
// by symbol ID so one matching multiple filters is only processed once.
func regenerateEmbeddings(ctx context.Context, st store.Store, types, modules []string) int {
	emb := newEmbedder()

	typeFilters := types
	if len(typeFilters) == 0 {
		typeFilters = []string{""}
	}
	moduleFilters := modules
	if len(moduleFilters) == 0 {
		moduleFilters = []string{""}
	}

	updated := 0
	seen := make(map[int64]bool)
	for _, t := range typeFilters {
		for _, m := range moduleFilters {
			for _, sym := range st.SearchSymbols(ctx, "", store.SearchFilter{SymbolType: t, Module: m, Limit: 100000}) {
				if seen[sym.ID] {
					continue
				}
				seen[sym.ID] = true

				doc := emb.EmbedDocumentation(ctx, sym.Documentation)
				sig := emb.EmbedSignature(ctx, sym.Signature)
				nameRes := emb.EmbedName(ctx, sym.Name, sym.Module)
				combined := emb.EmbedCombined(ctx, sym.Name, sym.Signature, sym.Documentation)

				if st.UpdateSymbolEmbeddings(ctx, sym.ID, doc.Embedding, sig.Embedding, nameRes.Embedding,
					combined.Embedding, emb.Model(), "1", emb.Dimension()) {
					updated++
				}
			}
		}
	}
	return updated
}
