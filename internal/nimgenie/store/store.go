// Package store persists the core's entities and exposes lexical and
// semantic search over them. The primary implementation (MySQLStore) talks
// to a MySQL-wire-compatible RDBMS with native VECTOR(D) columns; a second
// implementation (SQLiteStore) backs unit tests without a live database,
// following the same dual-backend split the upstream package uses between
// its SQLite and Qdrant storages behind one Storage interface.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Symbol mirrors the SymbolRecord entity from the data model.
type Symbol struct {
	ID            int64
	Name          string
	SymbolType    string
	Module        string
	FilePath      string
	Line          int
	Column        int
	Signature     string
	Documentation string
	Visibility    string
	Code          string
	Pragmas       string

	DocumentationEmbedding []float32
	SignatureEmbedding     []float32
	NameEmbedding          []float32
	CombinedEmbedding      []float32
	EmbeddingModel         string
	EmbeddingVersion       string

	// SimilarityScore and Distance are populated only on semantic-search
	// results; zero value on rows from lexical lookups.
	SimilarityScore float64
	Distance        float64
}

// Module mirrors the Module entity.
type Module struct {
	ID            int64
	Name          string
	FilePath      string
	LastModified  int64
	Documentation string
	Created       int64
}

// FileDependency mirrors the FileDependency entity.
type FileDependency struct {
	ID         int64
	SourceFile string
	TargetFile string
	Created    int64
	Updated    int64
}

// FileModification mirrors the FileModification entity.
type FileModification struct {
	FilePath         string
	ModificationTime int64
	FileSize         int64
	Hash             string
	Created          int64
	Updated          int64
}

// RegisteredDirectory mirrors the RegisteredDirectory entity.
type RegisteredDirectory struct {
	ID          int64
	Path        string
	Name        string
	Description string
	Created     int64
}

// EmbeddingMetadata mirrors the EmbeddingMetadata audit record.
type EmbeddingMetadata struct {
	ModelName     string
	ModelVersion  string
	Dimensions    int
	EmbeddingType string
	TotalSymbols  int
	LastUpdated   int64
}

// SearchFilter narrows searchSymbols/semanticSearchSymbols results.
type SearchFilter struct {
	SymbolType string
	Module     string
	Limit      int
}

// ProjectStats is the aggregate summary getProjectStats returns.
type ProjectStats struct {
	TotalSymbols      int            `json:"total_symbols"`
	TotalModules      int            `json:"total_modules"`
	SymbolsByType     map[string]int `json:"symbols_by_type"`
	TotalDeps         int            `json:"total_dependencies"`
	FilesTracked      int            `json:"files_tracked"`
	TotalBytesTracked int64          `json:"total_bytes_tracked"`
}

// EmbeddingStats is the aggregate summary getEmbeddingStats returns.
type EmbeddingStats struct {
	TotalSymbols     int     `json:"total_symbols"`
	EmbeddedSymbols  int     `json:"embedded_symbols"`
	CoveragePercent  float64 `json:"coverage_percent"`
}

// Store is the Symbol Store interface (C4). Every method swallows DBMS
// errors internally per §4.4/§7: failures surface as a sentinel return
// value (false, -1, or a populated error field). InsertSymbol's error is
// always nil (a failed insert returns -1); the exceptions are Close and
// GetSymbolInfo, which returns ErrNotFound or the query error so the
// dispatcher can report it.
type Store interface {
	Close() error

	InsertSymbol(ctx context.Context, s Symbol, dimension int) (int64, error)
	InsertModule(ctx context.Context, name, path string, lastModified int64, doc string) (int64, bool)
	SearchSymbols(ctx context.Context, query string, filter SearchFilter) []Symbol
	GetSymbolInfo(ctx context.Context, name, module string) ([]Symbol, error)
	SemanticSearchSymbols(ctx context.Context, queryVector []float32, filter SearchFilter) []Symbol
	FindSimilarByEmbedding(ctx context.Context, vector []float32, excludeID int64, limit int) []Symbol
	UpdateSymbolEmbeddings(ctx context.Context, symbolID int64, doc, sig, name, combined []float32, model, version string, dimension int) bool
	ClearSymbols(ctx context.Context) bool

	InsertFileDependency(ctx context.Context, source, target string) bool
	GetFileDependencies(ctx context.Context, source, target string) []FileDependency
	ClearFileDependencies(ctx context.Context, source string) bool

	InsertFileModification(ctx context.Context, path string, modTime, size int64, hash string) bool
	GetFileModification(ctx context.Context, path string) (*FileModification, bool)

	GetProjectStats(ctx context.Context) ProjectStats
	GetEmbeddingStats(ctx context.Context) EmbeddingStats

	ListRegisteredDirectories(ctx context.Context) []RegisteredDirectory
	InsertRegisteredDirectory(ctx context.Context, path, name, description string) bool
}
