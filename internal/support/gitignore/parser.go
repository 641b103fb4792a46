// Package gitignore layers a project's .gitignore over a built-in set of
// Nim build-artifact patterns, so the indexer's directory walk skips
// compiler output without requiring every Nim project to gitignore it.
package gitignore

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// nimBuiltinIgnores are skipped even when a project has no .gitignore of
// its own: nimcache/ and nimblecache/ hold compiler-generated C/object
// output, and compiled binaries share no extension the source walk needs.
var nimBuiltinIgnores = []string{
	"nimcache/",
	"nimblecache/",
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
}

// Parser handles .gitignore pattern matching, pre-seeded with
// nimBuiltinIgnores.
type Parser struct {
	rootPath string
	ignorer  *ignore.GitIgnore
}

// NewParser creates a new gitignore parser for the given root path.
func NewParser(rootPath string) (*Parser, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	lines := append([]string{}, nimBuiltinIgnores...)
	if contents, err := os.ReadFile(filepath.Join(absPath, ".gitignore")); err == nil {
		lines = append(lines, strings.Split(string(contents), "\n")...)
	}

	return &Parser{
		rootPath: absPath,
		ignorer:  ignore.CompileIgnoreLines(lines...),
	}, nil
}

// IsIgnored checks if the given path should be ignored
func (p *Parser) IsIgnored(path string) bool {
	if p.ignorer == nil {
		return false
	}

	// Get absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	// Check if path is within root
	if !strings.HasPrefix(absPath, p.rootPath) {
		return false
	}

	// Get relative path from root
	relPath, err := filepath.Rel(p.rootPath, absPath)
	if err != nil {
		return false
	}

	// Handle paths that resolve to current directory or parent
	if relPath == "." || strings.HasPrefix(relPath, "..") {
		return false
	}

	// Check if the path matches
	if p.ignorer.MatchesPath(relPath) {
		return true
	}

	// Also try with trailing slash for directory patterns
	if p.ignorer.MatchesPath(relPath + "/") {
		return true
	}

	return false
}

// RootPath returns the root path of the parser
func (p *Parser) RootPath() string {
	return p.rootPath
}
