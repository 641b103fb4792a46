package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
	"github.com/nimgenie/nimgenie/internal/nimgenie/store"
)

func newTestIndexer(t *testing.T, root string) (*Indexer, store.Store) {
	t.Helper()
	st, err := store.OpenSQLite(":memory:", 4)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.EmbeddingDimension = 4
	cfg.EmbeddingBaseURL = "http://127.0.0.1:1" // unreachable, Available() will be false
	return New(st, root, cfg), st
}

func TestFindSourceFilesExcludesKnownDirs(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "main.nim"), []byte("discard"), 0644)

	cacheDir := filepath.Join(root, "cache")
	os.Mkdir(cacheDir, 0755)
	os.WriteFile(filepath.Join(cacheDir, "skip.nim"), []byte("discard"), 0644)

	gitDir := filepath.Join(root, ".git")
	os.Mkdir(gitDir, 0755)
	os.WriteFile(filepath.Join(gitDir, "skip.nim"), []byte("discard"), 0644)

	sub := filepath.Join(root, "src")
	os.Mkdir(sub, 0755)
	os.WriteFile(filepath.Join(sub, "lib.nim"), []byte("discard"), 0644)
	os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("ignore me"), 0644)

	ix, _ := newTestIndexer(t, root)
	files := ix.findSourceFiles()
	if len(files) != 2 {
		t.Fatalf("findSourceFiles() = %v, want 2 files", files)
	}
	for _, f := range files {
		if filepath.Dir(f) == cacheDir || filepath.Dir(f) == gitDir {
			t.Fatalf("findSourceFiles() included excluded directory: %s", f)
		}
	}
}

func TestGetFilesToReindexOneHop(t *testing.T) {
	root := t.TempDir()
	ix, st := newTestIndexer(t, root)
	ctx := context.Background()

	st.InsertFileDependency(ctx, "a.nim", "b.nim")
	st.InsertFileDependency(ctx, "c.nim", "b.nim")

	result := ix.getFilesToReindex(ctx, []string{"b.nim"})
	if !containsAll(result, "b.nim", "a.nim", "c.nim") {
		t.Fatalf("getFilesToReindex() = %v, want {a.nim, b.nim, c.nim}", result)
	}
}

func TestGetFilesToReindexTransitiveWithCycle(t *testing.T) {
	root := t.TempDir()
	ix, st := newTestIndexer(t, root)
	ix.cfg.TransitiveReindex = true
	ctx := context.Background()

	// a -> b -> c -> a (cycle), changed = {c}
	st.InsertFileDependency(ctx, "a.nim", "b.nim")
	st.InsertFileDependency(ctx, "b.nim", "c.nim")
	st.InsertFileDependency(ctx, "c.nim", "a.nim")

	result := ix.getFilesToReindex(ctx, []string{"c.nim"})
	if !containsAll(result, "a.nim", "b.nim", "c.nim") {
		t.Fatalf("getFilesToReindex() = %v, want all three files, got stuck or missing", result)
	}
}

func containsAll(haystack []string, want ...string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
