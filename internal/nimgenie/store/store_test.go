package store

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:", 4)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertSymbolPreservesNullVectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertSymbol(ctx, Symbol{Name: "foo", SymbolType: "proc", Module: "m", FilePath: "m.nim"}, 4)
	if err != nil || id < 0 {
		t.Fatalf("InsertSymbol() = %d, %v", id, err)
	}

	stats := s.GetEmbeddingStats(ctx)
	if stats.TotalSymbols != 1 || stats.EmbeddedSymbols != 0 {
		t.Fatalf("GetEmbeddingStats() = %+v, want 1 total / 0 embedded", stats)
	}
}

func TestInsertSymbolRejectsDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sym := Symbol{
		Name: "bar", SymbolType: "proc", Module: "m", FilePath: "m.nim",
		CombinedEmbedding: []float32{1, 2, 3}, // dimension 3, configured 4
	}
	id, err := s.InsertSymbol(ctx, sym, 4)
	if err != nil || id < 0 {
		t.Fatalf("InsertSymbol() = %d, %v", id, err)
	}

	stats := s.GetEmbeddingStats(ctx)
	if stats.EmbeddedSymbols != 0 {
		t.Fatalf("expected dimension-mismatched vector left unset, got %+v", stats)
	}
}

func TestGetSymbolInfoAlwaysReturnsSlice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSymbolInfo(ctx, "missing", ""); err != ErrNotFound {
		t.Fatalf("GetSymbolInfo() on missing symbol = %v, want ErrNotFound", err)
	}

	s.InsertSymbol(ctx, Symbol{Name: "dup", SymbolType: "proc", Module: "a", FilePath: "a.nim"}, 4)
	s.InsertSymbol(ctx, Symbol{Name: "dup", SymbolType: "proc", Module: "b", FilePath: "b.nim"}, 4)

	results, err := s.GetSymbolInfo(ctx, "dup", "")
	if err != nil {
		t.Fatalf("GetSymbolInfo() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("GetSymbolInfo() returned %d rows, want 2", len(results))
	}
}

func TestSearchSymbolsIsCaseInsensitiveAndFiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.InsertSymbol(ctx, Symbol{Name: "ParseConfig", SymbolType: "proc", Module: "config", FilePath: "config.nim"}, 4)
	s.InsertSymbol(ctx, Symbol{Name: "parseArgs", SymbolType: "func", Module: "cli", FilePath: "cli.nim"}, 4)

	results := s.SearchSymbols(ctx, "parse", SearchFilter{})
	if len(results) != 2 {
		t.Fatalf("SearchSymbols() returned %d rows, want 2", len(results))
	}

	filtered := s.SearchSymbols(ctx, "parse", SearchFilter{SymbolType: "func"})
	if len(filtered) != 1 || filtered[0].Name != "parseArgs" {
		t.Fatalf("SearchSymbols() with type filter = %+v", filtered)
	}
}

func TestSemanticSearchOrdersByDistanceAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	near := Symbol{Name: "near", SymbolType: "proc", Module: "m", FilePath: "m.nim", CombinedEmbedding: []float32{1, 0, 0, 0}}
	far := Symbol{Name: "far", SymbolType: "proc", Module: "m", FilePath: "m.nim", CombinedEmbedding: []float32{0, 1, 0, 0}}
	s.InsertSymbol(ctx, near, 4)
	s.InsertSymbol(ctx, far, 4)

	results := s.SemanticSearchSymbols(ctx, []float32{1, 0, 0, 0}, SearchFilter{Limit: 10})
	if len(results) != 2 {
		t.Fatalf("SemanticSearchSymbols() returned %d rows, want 2", len(results))
	}
	if results[0].Name != "near" {
		t.Fatalf("SemanticSearchSymbols() first result = %q, want %q", results[0].Name, "near")
	}
	if results[0].SimilarityScore < results[1].SimilarityScore {
		t.Fatalf("expected descending similarity, got %+v", results)
	}
}

func TestFileDependencyFiltersByEitherEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.InsertFileDependency(ctx, "a.nim", "b.nim")
	s.InsertFileDependency(ctx, "c.nim", "b.nim")

	bySource := s.GetFileDependencies(ctx, "a.nim", "")
	if len(bySource) != 1 || bySource[0].TargetFile != "b.nim" {
		t.Fatalf("GetFileDependencies(source) = %+v", bySource)
	}

	byTarget := s.GetFileDependencies(ctx, "", "b.nim")
	if len(byTarget) != 2 {
		t.Fatalf("GetFileDependencies(target) returned %d rows, want 2", len(byTarget))
	}
}

func TestClearSymbolsWipesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.InsertSymbol(ctx, Symbol{Name: "x", SymbolType: "proc", Module: "m", FilePath: "m.nim"}, 4)
	s.InsertSymbol(ctx, Symbol{Name: "y", SymbolType: "proc", Module: "other", FilePath: "o.nim"}, 4)

	if !s.ClearSymbols(ctx) {
		t.Fatal("ClearSymbols() = false")
	}

	stats := s.GetProjectStats(ctx)
	if stats.TotalSymbols != 0 {
		t.Fatalf("ClearSymbols() left %d rows, want 0", stats.TotalSymbols)
	}
}

func TestGetEmbeddingStatsUsesIsNotNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.InsertSymbol(ctx, Symbol{Name: "a", SymbolType: "proc", Module: "m", FilePath: "m.nim",
		CombinedEmbedding: []float32{1, 0, 0, 0}}, 4)
	s.InsertSymbol(ctx, Symbol{Name: "b", SymbolType: "proc", Module: "m", FilePath: "m.nim"}, 4)

	stats := s.GetEmbeddingStats(ctx)
	if stats.TotalSymbols != 2 || stats.EmbeddedSymbols != 1 {
		t.Fatalf("GetEmbeddingStats() = %+v, want 2 total / 1 embedded", stats)
	}
	if stats.CoveragePercent != 50 {
		t.Fatalf("GetEmbeddingStats().CoveragePercent = %v, want 50", stats.CoveragePercent)
	}
}

func TestInsertRegisteredDirectoryUpsertsByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if !s.InsertRegisteredDirectory(ctx, "/srv/vendor", "vendor", "third-party sources") {
		t.Fatal("InsertRegisteredDirectory() = false")
	}
	if !s.InsertRegisteredDirectory(ctx, "/srv/vendor", "vendor", "updated description") {
		t.Fatal("InsertRegisteredDirectory() on existing path = false")
	}

	dirs := s.ListRegisteredDirectories(ctx)
	if len(dirs) != 1 {
		t.Fatalf("ListRegisteredDirectories() = %d entries, want 1 (upsert, not insert)", len(dirs))
	}
	if dirs[0].Description != "updated description" {
		t.Fatalf("ListRegisteredDirectories()[0].Description = %q, want %q", dirs[0].Description, "updated description")
	}
}

func TestListRegisteredDirectoriesOrdersByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.InsertRegisteredDirectory(ctx, "/a", "a", "")
	s.InsertRegisteredDirectory(ctx, "/b", "b", "")

	dirs := s.ListRegisteredDirectories(ctx)
	if len(dirs) != 2 || dirs[0].Path != "/a" || dirs[1].Path != "/b" {
		t.Fatalf("ListRegisteredDirectories() = %+v, want [/a, /b] in insertion order", dirs)
	}
}

func TestCosineDistanceRange(t *testing.T) {
	identical := cosineDistance([]float32{1, 0, 0, 0}, []float32{1, 0, 0, 0})
	if identical > 0.001 {
		t.Errorf("cosineDistance(identical) = %v, want ~0", identical)
	}
	opposite := cosineDistance([]float32{1, 0, 0, 0}, []float32{-1, 0, 0, 0})
	if opposite < 1.999 {
		t.Errorf("cosineDistance(opposite) = %v, want ~2", opposite)
	}
}

func TestEncodeDecodeEmbeddingRoundTrips(t *testing.T) {
	original := []float32{0.1, 0.2, 0.3, 0.4}
	decoded := decodeEmbedding(encodeEmbedding(original))
	if len(decoded) != len(original) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("decoded[%d] = %v, want %v", i, decoded[i], original[i])
		}
	}
}
