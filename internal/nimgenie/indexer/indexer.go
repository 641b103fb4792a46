// Package indexer orchestrates the toolchain, doc parser, embedding
// client, and symbol store into whole-project and incremental indexing
// operations, mirroring the upstream package's IndexManager: a struct
// wrapping a Storage plus embedder, with find/index/update methods and a
// streaming progress variant driven by a channel.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
	"github.com/nimgenie/nimgenie/internal/nimgenie/docparser"
	"github.com/nimgenie/nimgenie/internal/nimgenie/embedding"
	"github.com/nimgenie/nimgenie/internal/nimgenie/store"
	"github.com/nimgenie/nimgenie/internal/nimgenie/toolchain"
	"github.com/nimgenie/nimgenie/internal/support/gitignore"
)

// excludedDirs names directories findSourceFiles never descends into.
var excludedDirs = map[string]bool{
	"cache":    true,
	".git":     true,
	"htmldocs": true,
	"docs":     true,
}

// Progress is one event of the indexProjectWithStreaming phase sequence.
type Progress struct {
	Stage    string `json:"stage"`
	Message  string `json:"message,omitempty"`
	File     string `json:"file,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Indexer drives C1->C2->C3->C4 for one project root.
type Indexer struct {
	store     store.Store
	root      string
	cfg       config.Config
	driver    *toolchain.Driver
	embedder  *embedding.Client
	gitignore *gitignore.Parser
}

// New constructs an Indexer bound to projectRoot, per §4.5's
// newIndexer(store, projectRoot, config) contract.
func New(st store.Store, projectRoot string, cfg config.Config) *Indexer {
	embCfg := embedding.DefaultConfig()
	embCfg.BaseURL = cfg.EmbeddingBaseURL
	embCfg.Model = cfg.EmbeddingModel
	embCfg.Dimension = cfg.EmbeddingDimension

	ignorer, err := gitignore.NewParser(projectRoot)
	if err != nil {
		ignorer = nil
	}

	return &Indexer{
		store:     st,
		root:      projectRoot,
		cfg:       cfg,
		driver:    toolchain.New(projectRoot, cfg.CompilerBinary, cfg.PackagerBinary),
		embedder:  embedding.New(embCfg),
		gitignore: ignorer,
	}
}

// findSourceFiles recursively walks the project, skipping excludedDirs and
// anything matched by the project's .gitignore, returning every file whose
// extension matches the source language.
func (ix *Indexer) findSourceFiles() []string {
	var files []string
	filepath.WalkDir(ix.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != ix.root && excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			if ix.gitignore != nil && ix.gitignore.IsIgnored(path) {
				return filepath.SkipDir
			}
			return nil
		}
		matched, _ := doublestar.Match("**/*"+toolchain.SourceExtension, relPath(ix.root, path))
		if !matched {
			return nil
		}
		if ix.gitignore != nil && ix.gitignore.IsIgnored(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// indexSingleFile runs extractJsonDoc, parses the result, upserts the
// module row, embeds and inserts every symbol, and additionally parses an
// adjacent .idx file if one exists.
func (ix *Indexer) indexSingleFile(ctx context.Context, path string) (bool, int) {
	out, code, err := ix.driver.ExtractJSONDoc(ctx, path)
	if err != nil || code != 0 {
		return false, 0
	}

	records := docparser.ParseJSONDoc([]byte(out), ix.root, toolchain.SourceExtension)
	if len(records) == 0 {
		return true, 0
	}

	module := records[0].Module
	info, statErr := os.Stat(path)
	var mtime int64
	if statErr == nil {
		mtime = info.ModTime().Unix()
	}
	ix.store.InsertModule(ctx, module, path, mtime, "")

	count := ix.embedAndInsertAll(ctx, records)

	idxPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".idx"
	if data, err := os.ReadFile(idxPath); err == nil {
		idxRecords := docparser.ParseIndexFile(data, module)
		count += ix.embedAndInsertAll(ctx, idxRecords)
	}

	return true, count
}

// embedAndInsertAll computes the four embedding vectors for every record
// concurrently (bounded fan-out via errgroup), then inserts each symbol.
// A record whose embedding call fails yields empty vectors rather than
// aborting the whole file, per §4.5.2's "failures yield empty vectors".
func (ix *Indexer) embedAndInsertAll(ctx context.Context, records []docparser.SymbolRecord) int {
	symbols := make([]store.Symbol, len(records))

	if ix.embedder.Available() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(8)
		for i, rec := range records {
			i, rec := i, rec
			g.Go(func() error {
				symbols[i] = ix.embedRecord(gctx, rec)
				return nil
			})
		}
		g.Wait()
	} else {
		for i, rec := range records {
			symbols[i] = recordToSymbol(rec)
		}
	}

	inserted := 0
	for _, sym := range symbols {
		if id, err := ix.store.InsertSymbol(ctx, sym, ix.embedder.Dimension()); err == nil && id >= 0 {
			inserted++
		}
	}
	return inserted
}

func recordToSymbol(rec docparser.SymbolRecord) store.Symbol {
	return store.Symbol{
		Name:          rec.Name,
		SymbolType:    rec.SymbolType,
		Module:        rec.Module,
		FilePath:      rec.FilePath,
		Line:          rec.Line,
		Column:        rec.Column,
		Signature:     rec.Signature,
		Documentation: rec.Documentation,
		Visibility:    rec.Visibility,
		Code:          rec.Code,
		Pragmas:       rec.Pragmas,
	}
}

func (ix *Indexer) embedRecord(ctx context.Context, rec docparser.SymbolRecord) store.Symbol {
	sym := recordToSymbol(rec)
	sym.EmbeddingModel = ix.embedder.Model()

	if res := ix.embedder.EmbedDocumentation(ctx, rec.Documentation); res.Success {
		sym.DocumentationEmbedding = res.Embedding
	}
	if res := ix.embedder.EmbedSignature(ctx, rec.Signature); res.Success {
		sym.SignatureEmbedding = res.Embedding
	}
	if res := ix.embedder.EmbedName(ctx, rec.Name, rec.Module); res.Success {
		sym.NameEmbedding = res.Embedding
	}
	if res := ix.embedder.EmbedCombined(ctx, rec.Name, rec.Signature, rec.Documentation); res.Success {
		sym.CombinedEmbedding = res.Embedding
	}
	return sym
}

// ParseAndStoreDependencies runs genDepend, clears existing edges, and
// inserts every parsed edge. Best-effort: per-edge insert failures are
// ignored, not fatal.
func (ix *Indexer) ParseAndStoreDependencies(ctx context.Context) bool {
	result := ix.driver.GenDepend(ctx)
	if result.Status != "success" {
		return false
	}

	edges := docparser.ParseDOT([]byte(result.Dependencies))
	ix.store.ClearFileDependencies(ctx, "")
	for _, e := range edges {
		ix.store.InsertFileDependency(ctx, absolutize(ix.root, e.Source), absolutize(ix.root, e.Target))
	}
	return true
}

func absolutize(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// indexProject performs a full re-index: wipe, discover, optionally parse
// dependencies, index every file, then run a project-wide doc pass.
func (ix *Indexer) IndexProject(ctx context.Context) string {
	return ix.indexProjectStreaming(ctx, nil)
}

// IndexProjectWithStreaming behaves identically to IndexProject but emits
// a Progress event at every phase boundary, including a numeric progress
// percentage during the per-file indexing phase. Cancellation is polled
// after each file completes.
func (ix *Indexer) IndexProjectWithStreaming(ctx context.Context, sink chan<- Progress) string {
	return ix.indexProjectStreaming(ctx, sink)
}

func (ix *Indexer) indexProjectStreaming(ctx context.Context, sink chan<- Progress) string {
	emit := func(p Progress) {
		if sink != nil {
			sink <- p
		}
	}

	emit(Progress{Stage: "starting"})

	emit(Progress{Stage: "cleanup"})
	ix.store.ClearSymbols(ctx)

	emit(Progress{Stage: "discovery"})
	files := ix.findSourceFiles()

	if ix.cfg.EnableDependencyTracking {
		emit(Progress{Stage: "dependencies"})
		if !ix.ParseAndStoreDependencies(ctx) {
			emit(Progress{Stage: "dependencies", Message: "dependency parsing failed, continuing without it"})
		}
	}

	processed, symbolTotal, failures := 0, 0, 0
	total := len(files)
	for _, f := range files {
		select {
		case <-ctx.Done():
			emit(Progress{Stage: "cancelled"})
			return fmt.Sprintf("cancelled after %d/%d files", processed, total)
		default:
		}

		info, err := os.Stat(f)
		if err == nil {
			ix.store.InsertFileModification(ctx, f, info.ModTime().Unix(), info.Size(), "")
		}

		ok, count := ix.indexSingleFile(ctx, f)
		processed++
		if ok {
			symbolTotal += count
			emit(Progress{Stage: "indexing", File: f, Progress: float64(processed) / float64(total) * 100})
		} else {
			failures++
			emit(Progress{Stage: "indexing", File: f, Error: "failed to extract documentation"})
		}
	}

	emit(Progress{Stage: "project_wide"})
	ix.projectWidePass(ctx)

	emit(Progress{Stage: "completed"})
	return fmt.Sprintf("processed %d/%d files, %d symbols indexed, %d failures", processed, total, symbolTotal, failures)
}

func (ix *Indexer) projectWidePass(ctx context.Context) {
	main, ok := ix.driver.FindMainFile()
	if !ok {
		return
	}
	if result := ix.driver.DocProjectIndex(ctx, main); result.Status != "success" {
		return
	}

	filepath.WalkDir(ix.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".idx") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		module := strings.TrimSuffix(filepath.Base(path), ".idx")
		records := docparser.ParseIndexFile(data, module)
		ix.embedAndInsertAll(ctx, records)
		return nil
	})
}

// getFilesToReindex returns the union of changed and every file with a
// FileDependency edge targeting a changed file (one-hop reverse
// dependents), optionally extended to the full transitive closure when
// config.TransitiveReindex is set, bounded against cycles by a visited set.
func (ix *Indexer) getFilesToReindex(ctx context.Context, changed []string) []string {
	seen := make(map[string]bool, len(changed))
	var result []string
	for _, f := range changed {
		if !seen[f] {
			seen[f] = true
			result = append(result, f)
		}
	}

	frontier := changed
	for len(frontier) > 0 {
		var next []string
		for _, c := range frontier {
			deps := ix.store.GetFileDependencies(ctx, "", c)
			for _, d := range deps {
				if seen[d.SourceFile] {
					continue
				}
				seen[d.SourceFile] = true
				result = append(result, d.SourceFile)
				next = append(next, d.SourceFile)
			}
		}
		if !ix.cfg.TransitiveReindex {
			break
		}
		frontier = next
	}
	return result
}

// updateIndex re-indexes explicitFiles if given, or detects changed files
// by mtime and extends to their reverse-dependents via getFilesToReindex,
// falling back to the changed set alone when dependency tracking yields
// nothing.
func (ix *Indexer) UpdateIndex(ctx context.Context, explicitFiles []string) string {
	var filesToUpdate []string

	if len(explicitFiles) > 0 {
		filesToUpdate = explicitFiles
	} else {
		var changed []string
		for _, f := range ix.findSourceFiles() {
			info, err := os.Stat(f)
			if err != nil {
				continue
			}
			mod, ok := ix.store.GetFileModification(ctx, f)
			if !ok || info.ModTime().Unix() > mod.ModificationTime {
				changed = append(changed, f)
			}
		}

		filesToUpdate = ix.getFilesToReindex(ctx, changed)
		if len(filesToUpdate) == 0 {
			filesToUpdate = changed
		}
	}

	processed, symbolTotal, failures := 0, 0, 0
	for _, f := range filesToUpdate {
		info, err := os.Stat(f)
		if err == nil {
			ix.store.InsertFileModification(ctx, f, info.ModTime().Unix(), info.Size(), "")
		}
		ok, count := ix.indexSingleFile(ctx, f)
		processed++
		if ok {
			symbolTotal += count
		} else {
			failures++
		}
	}

	return fmt.Sprintf("updated %d files, %d symbols indexed, %d failures", processed, symbolTotal, failures)
}
