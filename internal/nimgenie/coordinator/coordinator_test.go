package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
)

func TestDiscoverPackagesFirstWriterWins(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	pkgs := filepath.Join(home, ".pkgs")
	pkgs2 := filepath.Join(home, ".pkgs2")
	os.MkdirAll(filepath.Join(pkgs, "nimcrypto-0.1.0"), 0755)
	os.MkdirAll(filepath.Join(pkgs2, "nimcrypto-0.2.0"), 0755)
	os.MkdirAll(filepath.Join(pkgs2, "zippy-0.9.0"), 0755)

	c := New(config.Default())
	c.discoverPackages()

	if len(c.packages) != 2 {
		t.Fatalf("discoverPackages() registered %d names, want 2", len(c.packages))
	}

	got := c.packages["nimcrypto"]
	want := filepath.Join(pkgs, "nimcrypto-0.1.0")
	if got != want {
		t.Fatalf("discoverPackages() first-writer-wins: got %q, want %q (the .pkgs entry)", got, want)
	}
	if c.packages["zippy"] != filepath.Join(pkgs2, "zippy-0.9.0") {
		t.Fatalf("discoverPackages() missing zippy entry: %+v", c.packages)
	}
}

func TestSearchPackagesIsCaseInsensitiveSubstring(t *testing.T) {
	c := New(config.Default())
	c.packages = map[string]string{
		"nimcrypto": "/pkgs/nimcrypto-0.1.0",
		"zippy":     "/pkgs/zippy-0.9.0",
	}

	results := c.SearchPackages("CRYPT")
	if len(results) != 1 {
		t.Fatalf("SearchPackages() = %v, want exactly {nimcrypto: ...}", results)
	}
	if _, ok := results["nimcrypto"]; !ok {
		t.Fatalf("SearchPackages() missing nimcrypto: %v", results)
	}
}

func TestClearCacheEmptiesQueryCache(t *testing.T) {
	c := New(config.Default())
	c.queryCache["search:foo::"] = []string{"stale"}

	c.ClearCache()

	if len(c.queryCache) != 0 {
		t.Fatalf("ClearCache() left %d entries", len(c.queryCache))
	}
}
