package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
	"github.com/nimgenie/nimgenie/internal/nimgenie/coordinator"
	"github.com/nimgenie/nimgenie/internal/nimgenie/embedding"
	"github.com/nimgenie/nimgenie/internal/nimgenie/store"
)

// Handler dispatches tool calls to the Coordinator. Every exported method
// returns a JSON-serialized string and never a raw error: failures are
// caught and converted to {"error": "..."} per §4.7's catch-all contract.
type Handler struct {
	coord    *coordinator.Coordinator
	cfg      config.Config
	embedder *embedding.Client
}

// New constructs a Handler bound to one Coordinator.
func New(coord *coordinator.Coordinator, cfg config.Config) *Handler {
	embCfg := embedding.DefaultConfig()
	embCfg.BaseURL = cfg.EmbeddingBaseURL
	embCfg.Model = cfg.EmbeddingModel
	embCfg.Dimension = cfg.EmbeddingDimension
	return &Handler{coord: coord, cfg: cfg, embedder: embedding.New(embCfg)}
}

// Dispatch routes a tool call by name to its handler, catching panics from
// the handler body and turning them into an {error} payload as a last
// line of defense, matching "on any exception escaping the coordinator".
func (h *Handler) Dispatch(ctx context.Context, name string, args map[string]interface{}) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = errorJSON(fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch name {
	case "indexCurrentProject":
		return h.indexCurrentProject(ctx, args), nil
	case "indexProjectDependenciesOnly":
		return h.indexProjectDependenciesOnly(ctx, args), nil
	case "searchSymbols":
		return h.searchSymbols(ctx, args), nil
	case "getSymbolInfo":
		return h.getSymbolInfo(ctx, args), nil
	case "semanticSearchSymbols":
		return h.semanticSearchSymbols(ctx, args), nil
	case "findSimilarSymbols":
		return h.findSimilarSymbols(ctx, args), nil
	case "searchByExample":
		return h.searchByExample(ctx, args), nil
	case "generateEmbeddings":
		return h.generateEmbeddings(ctx, args), nil
	case "getProjectStats":
		return h.getProjectStats(ctx, args), nil
	case "getEmbeddingStats":
		return h.getEmbeddingStats(ctx, args), nil
	case "checkSyntax":
		return h.checkSyntax(ctx, args), nil
	case "searchPackages":
		return h.searchPackages(args), nil
	case "registerDirectory":
		return h.registerDirectory(ctx, args), nil
	case "listRegisteredDirectories":
		return h.listRegisteredDirectories(ctx, args), nil
	default:
		return errorJSON(fmt.Sprintf("unknown tool: %s", name)), nil
	}
}

func errorJSON(message string) string {
	data, _ := json.Marshal(map[string]string{"error": message})
	return string(data)
}

func toJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorJSON(err.Error())
	}
	return string(data)
}

func pathArg(args map[string]interface{}) string {
	if v, ok := args["path"].(string); ok && v != "" {
		return v
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (h *Handler) indexCurrentProject(ctx context.Context, args map[string]interface{}) string {
	summary, err := h.coord.IndexCurrentProject(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(map[string]string{"summary": summary})
}

func (h *Handler) indexProjectDependenciesOnly(ctx context.Context, args map[string]interface{}) string {
	ok, err := h.coord.IndexProjectDependenciesOnly(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(map[string]bool{"success": ok})
}

func (h *Handler) searchSymbols(ctx context.Context, args map[string]interface{}) string {
	query := stringArg(args, "query")
	if query == "" {
		return errorJSON("query is required")
	}
	filter := store.SearchFilter{
		SymbolType: stringArg(args, "symbolType"),
		Module:     stringArg(args, "module"),
		Limit:      intArg(args, "limit", 100),
	}
	results, err := h.coord.SearchSymbols(ctx, pathArg(args), query, filter)
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(results)
}

func (h *Handler) getSymbolInfo(ctx context.Context, args map[string]interface{}) string {
	name := stringArg(args, "name")
	if name == "" {
		return errorJSON("name is required")
	}
	results, err := h.coord.GetSymbolInfo(ctx, pathArg(args), name, stringArg(args, "module"))
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(results)
}

func (h *Handler) semanticSearchSymbols(ctx context.Context, args map[string]interface{}) string {
	query := stringArg(args, "query")
	if query == "" {
		return errorJSON("query is required")
	}

	st, _, _, err := h.coord.Project(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}

	res := h.embedder.EmbedCombined(ctx, "", "", query)
	if !res.Success {
		return errorJSON("embedding failed: " + res.Error)
	}

	results := st.SemanticSearchSymbols(ctx, res.Embedding, store.SearchFilter{Limit: intArg(args, "limit", 10)})
	return toJSON(results)
}

func (h *Handler) findSimilarSymbols(ctx context.Context, args map[string]interface{}) string {
	name := stringArg(args, "name")
	if name == "" {
		return errorJSON("name is required")
	}

	st, _, _, err := h.coord.Project(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}

	matches, err := st.GetSymbolInfo(ctx, name, stringArg(args, "module"))
	if err != nil {
		return errorJSON(err.Error())
	}
	target := matches[0]
	if len(target.CombinedEmbedding) == 0 {
		return errorJSON("symbol has no combined embedding; run generateEmbeddings first")
	}

	results := st.FindSimilarByEmbedding(ctx, target.CombinedEmbedding, target.ID, intArg(args, "limit", 10))
	return toJSON(results)
}

func (h *Handler) searchByExample(ctx context.Context, args map[string]interface{}) string {
	snippet := stringArg(args, "snippet")
	if snippet == "" {
		return errorJSON("snippet is required")
	}

	st, _, _, err := h.coord.Project(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}

	res := h.embedder.EmbedCombined(ctx, "", snippet, "")
	if !res.Success {
		return errorJSON("embedding failed: " + res.Error)
	}

	results := st.FindSimilarByEmbedding(ctx, res.Embedding, -1, intArg(args, "limit", 10))
	return toJSON(results)
}

func (h *Handler) generateEmbeddings(ctx context.Context, args map[string]interface{}) string {
	st, _, _, err := h.coord.Project(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}

	types := stringSliceArg(args, "types")
	modules := stringSliceArg(args, "modules")

	updated := 0
	typeFilters := types
	if len(typeFilters) == 0 {
		typeFilters = []string{""}
	}
	moduleFilters := modules
	if len(moduleFilters) == 0 {
		moduleFilters = []string{""}
	}

	seen := make(map[int64]bool)
	for _, t := range typeFilters {
		for _, m := range moduleFilters {
			for _, sym := range st.SearchSymbols(ctx, "", store.SearchFilter{SymbolType: t, Module: m, Limit: 100000}) {
				if seen[sym.ID] {
					continue
				}
				seen[sym.ID] = true

				doc := h.embedder.EmbedDocumentation(ctx, sym.Documentation)
				sig := h.embedder.EmbedSignature(ctx, sym.Signature)
				nameRes := h.embedder.EmbedName(ctx, sym.Name, sym.Module)
				combined := h.embedder.EmbedCombined(ctx, sym.Name, sym.Signature, sym.Documentation)

				if st.UpdateSymbolEmbeddings(ctx, sym.ID, doc.Embedding, sig.Embedding, nameRes.Embedding,
					combined.Embedding, h.embedder.Model(), "1", h.embedder.Dimension()) {
					updated++
				}
			}
		}
	}

	h.coord.ClearCache()
	return toJSON(map[string]int{"symbolsUpdated": updated})
}

func (h *Handler) getProjectStats(ctx context.Context, args map[string]interface{}) string {
	st, _, _, err := h.coord.Project(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(st.GetProjectStats(ctx))
}

func (h *Handler) getEmbeddingStats(ctx context.Context, args map[string]interface{}) string {
	st, _, _, err := h.coord.Project(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(st.GetEmbeddingStats(ctx))
}

func (h *Handler) checkSyntax(ctx context.Context, args map[string]interface{}) string {
	_, _, driver, err := h.coord.Project(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}

	file := stringArg(args, "file")
	if file == "" {
		main, ok := driver.FindMainFile()
		if !ok {
			return errorJSON("no file given and no main file could be located")
		}
		file = main
	}

	return toJSON(driver.Check(ctx, file))
}

func (h *Handler) searchPackages(args map[string]interface{}) string {
	query := stringArg(args, "query")
	if query == "" {
		return errorJSON("query is required")
	}
	return toJSON(h.coord.SearchPackages(query))
}

func (h *Handler) registerDirectory(ctx context.Context, args map[string]interface{}) string {
	directory := stringArg(args, "directory")
	name := stringArg(args, "name")
	if directory == "" || name == "" {
		return errorJSON("directory and name are required")
	}
	ok, err := h.coord.RegisterDirectory(ctx, pathArg(args), directory, name, stringArg(args, "description"))
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(map[string]bool{"success": ok})
}

func (h *Handler) listRegisteredDirectories(ctx context.Context, args map[string]interface{}) string {
	dirs, err := h.coord.ListRegisteredDirectories(ctx, pathArg(args))
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(dirs)
}
