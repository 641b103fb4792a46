// Package coordinator holds the single coarse-mutex in-memory state the
// core specification describes: open projects, a discovered package
// catalog, a query result cache, and the registered-directories list.
// Every public operation acquires the mutex for its full duration,
// mirroring the upstream package's single-struct-plus-sync.Mutex shape.
package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/nimgenie/nimgenie/internal/nimgenie/config"
	"github.com/nimgenie/nimgenie/internal/nimgenie/indexer"
	"github.com/nimgenie/nimgenie/internal/nimgenie/store"
	"github.com/nimgenie/nimgenie/internal/nimgenie/toolchain"
)

// lockRetryInterval is the poll interval TryLockContext uses while waiting
// for another process's indexing run to release the project lock file.
const lockRetryInterval = 50 * time.Millisecond

// errLockBusy is returned when another process holds the project's
// advisory index lock.
var errLockBusy = errors.New("another process is indexing this project")

// packageCacheDirs are the well-known Nimble package-cache locations
// searched at workspace-open time.
func packageCacheDirs() []string {
	home, _ := os.UserHomeDir()
	return []string{
		filepath.Join(home, ".pkgs"),
		filepath.Join(home, ".pkgs2"),
		"/usr/local/share/nimble/pkgs2",
		"/opt/nimble/pkgs2",
	}
}

// project bundles one open workspace's dependencies.
type project struct {
	root    string
	store   store.Store
	indexer *indexer.Indexer
	driver  *toolchain.Driver
	lock    *flock.Flock
}

// Coordinator is the single process-wide instance holding coarse state.
type Coordinator struct {
	mu          sync.Mutex
	cfg         config.Config
	projects    map[string]*project
	packages    map[string]string // baseName -> absolutePath
	queryCache  map[string]interface{}
	registered  []store.RegisteredDirectory
}

// New constructs an empty Coordinator; OpenWorkspace populates it lazily
// per project root as tools request one.
func New(cfg config.Config) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		projects:   make(map[string]*project),
		packages:   make(map[string]string),
		queryCache: make(map[string]interface{}),
	}
}

// OpenWorkspace opens (or returns an already-open) project at rootPath:
// opens its Symbol Store, loads the registered-directories cache, and
// runs package discovery over the well-known package-cache directories
// while the package catalog is still empty.
func (c *Coordinator) OpenWorkspace(ctx context.Context, rootPath string) (*project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	if p, ok := c.projects[abs]; ok {
		return p, nil
	}

	st, err := store.Open(c.cfg.DSN(), c.cfg.PoolSize, c.cfg.EmbeddingDimension)
	if err != nil {
		return nil, err
	}

	if len(c.packages) == 0 {
		c.discoverPackages()
	}

	p := &project{
		root:    abs,
		store:   st,
		indexer: indexer.New(st, abs, c.cfg),
		driver:  toolchain.New(abs, c.cfg.CompilerBinary, c.cfg.PackagerBinary),
		lock:    flock.New(filepath.Join(os.TempDir(), "nimgenie-"+sanitizeLockName(abs)+".lock")),
	}
	c.projects[abs] = p
	c.registered = st.ListRegisteredDirectories(ctx)

	return p, nil
}

func sanitizeLockName(path string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(path)
}

// discoverPackages lists immediate subdirectories of each well-known
// package-cache directory and registers baseName -> absolutePath, where
// baseName is the segment before the first "-". First writer wins.
func (c *Coordinator) discoverPackages() {
	for _, dir := range packageCacheDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			base := e.Name()
			if idx := strings.Index(base, "-"); idx >= 0 {
				base = base[:idx]
			}
			if _, exists := c.packages[base]; exists {
				continue
			}
			c.packages[base] = filepath.Join(dir, e.Name())
		}
	}
}

// SearchPackages does a lexical substring match over the discovered
// package catalog, supplementing the core spec with a convenience lookup
// over the in-memory baseName -> path registry package discovery builds.
func (c *Coordinator) SearchPackages(query string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make(map[string]string)
	q := strings.ToLower(query)
	for name, path := range c.packages {
		if strings.Contains(strings.ToLower(name), q) {
			results[name] = path
		}
	}
	return results
}

// RegisterDirectory persists a user-added directory as an external
// resource and refreshes the in-memory registered-directories cache, per
// C6's "registeredDirectories: ordered sequence, backed by the store".
func (c *Coordinator) RegisterDirectory(ctx context.Context, rootPath, path, name, description string) (bool, error) {
	p, err := c.OpenWorkspace(ctx, rootPath)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ok := p.store.InsertRegisteredDirectory(ctx, path, name, description)
	c.registered = p.store.ListRegisteredDirectories(ctx)
	return ok, nil
}

// ListRegisteredDirectories returns the registered-directories cache,
// reloading it from the store first.
func (c *Coordinator) ListRegisteredDirectories(ctx context.Context, rootPath string) ([]store.RegisteredDirectory, error) {
	p, err := c.OpenWorkspace(ctx, rootPath)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.registered = p.store.ListRegisteredDirectories(ctx)
	return c.registered, nil
}

// IndexCurrentProject runs a full re-index and clears the query cache on
// completion, per the cache-clear-on-mutation contract.
func (c *Coordinator) IndexCurrentProject(ctx context.Context, rootPath string) (string, error) {
	p, err := c.OpenWorkspace(ctx, rootPath)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	locked, err := p.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil || !locked {
		return "", errLockBusy
	}
	defer p.lock.Unlock()

	summary := p.indexer.IndexProject(ctx)
	c.clearCacheLocked()
	return summary, nil
}

// IndexProjectDependenciesOnly runs just the dependency-graph pass.
func (c *Coordinator) IndexProjectDependenciesOnly(ctx context.Context, rootPath string) (bool, error) {
	p, err := c.OpenWorkspace(ctx, rootPath)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return p.indexer.ParseAndStoreDependencies(ctx), nil
}

// SearchSymbols consults the cache before, and populates it after, a call
// to the store.
func (c *Coordinator) SearchSymbols(ctx context.Context, rootPath, query string, filter store.SearchFilter) ([]store.Symbol, error) {
	p, err := c.OpenWorkspace(ctx, rootPath)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := "search:" + query + ":" + filter.SymbolType + ":" + filter.Module
	if cached, ok := c.queryCache[key]; ok {
		return cached.([]store.Symbol), nil
	}

	results := p.store.SearchSymbols(ctx, query, filter)
	c.queryCache[key] = results
	return results, nil
}

// GetSymbolInfo consults/populates the cache the same way.
func (c *Coordinator) GetSymbolInfo(ctx context.Context, rootPath, name, module string) ([]store.Symbol, error) {
	p, err := c.OpenWorkspace(ctx, rootPath)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := "info:" + name + ":" + module
	if cached, ok := c.queryCache[key]; ok {
		return cached.([]store.Symbol), nil
	}

	results, err := p.store.GetSymbolInfo(ctx, name, module)
	if err != nil {
		return nil, err
	}
	c.queryCache[key] = results
	return results, nil
}

// Project exposes the opened project's indexer/store/driver for
// dispatcher operations that need finer control than the convenience
// wrappers above provide (semantic search, embedding regeneration).
func (c *Coordinator) Project(ctx context.Context, rootPath string) (store.Store, *indexer.Indexer, *toolchain.Driver, error) {
	p, err := c.OpenWorkspace(ctx, rootPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return p.store, p.indexer, p.driver, nil
}

// ClearCache wipes the query cache; called by any tool that mutates
// indexed state outside the convenience wrappers above.
func (c *Coordinator) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearCacheLocked()
}

func (c *Coordinator) clearCacheLocked() {
	c.queryCache = make(map[string]interface{})
}

// Close tears down every open project's store, releasing the pool.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.projects {
		p.store.Close()
	}
}
