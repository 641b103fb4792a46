package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/nimgenie/nimgenie/pkg/vectorliteral"
)

// SQLiteStore is a modernc.org/sqlite-backed Store used in unit tests,
// grounded on the upstream SQLiteStorage idiom. SQLite has no native
// VECTOR type or vecCosineDistance function, so vectors are stored as
// packed little-endian float32 BLOBs and cosine distance is computed in
// Go at query time, following the upstream package's own
// encodeEmbedding/decodeEmbedding/cosineSimilarity split.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
}

// OpenSQLite opens (or creates) a SQLite database at path (":memory:" for
// an ephemeral one) and ensures the schema exists.
func OpenSQLite(path string, dimension int) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, dimension: dimension}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS symbol (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		symbol_type TEXT NOT NULL,
		module TEXT NOT NULL,
		file_path TEXT NOT NULL,
		line INTEGER NOT NULL DEFAULT 0,
		col INTEGER NOT NULL DEFAULT 0,
		signature TEXT,
		documentation TEXT,
		visibility TEXT,
		code TEXT,
		pragmas TEXT,
		documentation_embedding BLOB,
		signature_embedding BLOB,
		name_embedding BLOB,
		combined_embedding BLOB,
		embedding_model TEXT,
		embedding_version TEXT,
		created INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_symbol_name ON symbol(name);
	CREATE INDEX IF NOT EXISTS idx_symbol_module ON symbol(module);
	CREATE INDEX IF NOT EXISTS idx_symbol_type ON symbol(symbol_type);
	CREATE INDEX IF NOT EXISTS idx_symbol_line ON symbol(line);

	CREATE TABLE IF NOT EXISTS module (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		file_path TEXT,
		last_modified INTEGER,
		documentation TEXT,
		created INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS file_dependency (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT NOT NULL,
		target_file TEXT NOT NULL,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		UNIQUE(source_file, target_file)
	);
	CREATE INDEX IF NOT EXISTS idx_dep_source ON file_dependency(source_file);
	CREATE INDEX IF NOT EXISTS idx_dep_target ON file_dependency(target_file);

	CREATE TABLE IF NOT EXISTS file_modification (
		file_path TEXT PRIMARY KEY,
		modification_time INTEGER,
		file_size INTEGER,
		hash TEXT,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS registered_directory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		name TEXT,
		description TEXT,
		created INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS embedding_metadata (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_name TEXT,
		model_version TEXT,
		dimensions INTEGER,
		embedding_type TEXT,
		total_symbols INTEGER,
		last_updated INTEGER
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// encodeEmbedding packs a float32 slice into a little-endian byte blob.
func encodeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		bits := math.Float32bits(v)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

// decodeEmbedding unpacks a byte blob produced by encodeEmbedding.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// cosineDistance returns 1 - cosineSimilarity, which spans the same [0,2]
// range the MySQL store's vecCosineDistance produces, so
// similarity_score = 1 - distance/2 is consistent across backends.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

func nullableBlob(vec []float32) interface{} {
	if len(vec) == 0 {
		return nil
	}
	return encodeEmbedding(vec)
}

// InsertSymbol mirrors the MySQL store's NULL-preservation and
// dimension-rejection behavior over a BLOB column instead of VECTOR(D).
func (s *SQLiteStore) InsertSymbol(ctx context.Context, sym Symbol, dimension int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO symbol (name, symbol_type, module, file_path, line, col, signature, documentation,
			visibility, code, pragmas, embedding_model, embedding_version, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.Name, sym.SymbolType, sym.Module, sym.FilePath, sym.Line, sym.Column,
		sym.Signature, sym.Documentation, sym.Visibility, sym.Code, sym.Pragmas,
		sym.EmbeddingModel, sym.EmbeddingVersion, now())
	if err != nil {
		return -1, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return -1, nil
	}

	s.updateVectorColumn(ctx, id, "documentation_embedding", sym.DocumentationEmbedding, dimension)
	s.updateVectorColumn(ctx, id, "signature_embedding", sym.SignatureEmbedding, dimension)
	s.updateVectorColumn(ctx, id, "name_embedding", sym.NameEmbedding, dimension)
	s.updateVectorColumn(ctx, id, "combined_embedding", sym.CombinedEmbedding, dimension)
	return id, nil
}

func (s *SQLiteStore) updateVectorColumn(ctx context.Context, id int64, column string, vec []float32, dimension int) {
	if len(vec) == 0 {
		return
	}
	if err := vectorliteral.CheckDimension(vec, dimension); err != nil {
		return
	}
	query := fmt.Sprintf(`UPDATE symbol SET %s = ? WHERE id = ?`, column)
	s.db.ExecContext(ctx, query, encodeEmbedding(vec), id)
}

// InsertModule upserts by name.
func (s *SQLiteStore) InsertModule(ctx context.Context, name, path string, lastModified int64, doc string) (int64, bool) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO module (name, file_path, last_modified, documentation, created) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET file_path = excluded.file_path, last_modified = excluded.last_modified,
			documentation = excluded.documentation`,
		name, path, lastModified, doc, now())
	if err != nil {
		return -1, false
	}
	var id int64
	s.db.QueryRowContext(ctx, `SELECT id FROM module WHERE name = ?`, name).Scan(&id)
	return id, true
}

// SearchSymbols performs a case-insensitive LIKE search (SQLite's default
// LIKE collation is already case-insensitive for ASCII).
func (s *SQLiteStore) SearchSymbols(ctx context.Context, query string, filter SearchFilter) []Symbol {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	sqlQuery := `SELECT id, name, symbol_type, module, file_path, line, col, signature, documentation,
		visibility, code, pragmas FROM symbol WHERE name LIKE ?`
	args := []interface{}{"%" + query + "%"}
	if filter.SymbolType != "" {
		sqlQuery += " AND symbol_type = ?"
		args = append(args, filter.SymbolType)
	}
	if filter.Module != "" {
		sqlQuery += " AND module = ?"
		args = append(args, filter.Module)
	}
	sqlQuery += " ORDER BY name LIMIT ?"
	args = append(args, limit)

	return s.scanSymbols(ctx, sqlQuery, args...)
}

func (s *SQLiteStore) scanSymbols(ctx context.Context, query string, args ...interface{}) []Symbol {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var results []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.SymbolType, &sym.Module, &sym.FilePath, &sym.Line,
			&sym.Column, &sym.Signature, &sym.Documentation, &sym.Visibility, &sym.Code, &sym.Pragmas); err != nil {
			continue
		}
		results = append(results, sym)
	}
	return results
}

// GetSymbolInfo returns all exact-name matches, normalized to a slice.
func (s *SQLiteStore) GetSymbolInfo(ctx context.Context, name, module string) ([]Symbol, error) {
	sqlQuery := `SELECT id, name, symbol_type, module, file_path, line, col, signature, documentation,
		visibility, code, pragmas FROM symbol WHERE name = ?`
	args := []interface{}{name}
	if module != "" {
		sqlQuery += " AND module = ?"
		args = append(args, module)
	}
	sqlQuery += " ORDER BY module"

	results := s.scanSymbols(ctx, sqlQuery, args...)
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

// SemanticSearchSymbols loads every row with a non-NULL combined_embedding,
// computes cosine distance against queryVector in Go, and returns the
// closest `limit` rows ascending.
func (s *SQLiteStore) SemanticSearchSymbols(ctx context.Context, queryVector []float32, filter SearchFilter) []Symbol {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `SELECT id, name, symbol_type, module, file_path, line, col, signature, documentation,
		visibility, code, pragmas, combined_embedding FROM symbol WHERE combined_embedding IS NOT NULL`
	var args []interface{}
	if filter.SymbolType != "" {
		sqlQuery += " AND symbol_type = ?"
		args = append(args, filter.SymbolType)
	}
	if filter.Module != "" {
		sqlQuery += " AND module = ?"
		args = append(args, filter.Module)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var results []Symbol
	for rows.Next() {
		var sym Symbol
		var blob []byte
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.SymbolType, &sym.Module, &sym.FilePath, &sym.Line,
			&sym.Column, &sym.Signature, &sym.Documentation, &sym.Visibility, &sym.Code, &sym.Pragmas, &blob); err != nil {
			continue
		}
		sym.Distance = cosineDistance(queryVector, decodeEmbedding(blob))
		sym.SimilarityScore = 1 - sym.Distance/2
		results = append(results, sym)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// FindSimilarByEmbedding is SemanticSearchSymbols plus an id exclusion.
func (s *SQLiteStore) FindSimilarByEmbedding(ctx context.Context, vector []float32, excludeID int64, limit int) []Symbol {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, symbol_type, module, file_path, line, col, signature,
		documentation, visibility, code, pragmas, combined_embedding FROM symbol
		WHERE combined_embedding IS NOT NULL AND id <> ?`, excludeID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var results []Symbol
	for rows.Next() {
		var sym Symbol
		var blob []byte
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.SymbolType, &sym.Module, &sym.FilePath, &sym.Line,
			&sym.Column, &sym.Signature, &sym.Documentation, &sym.Visibility, &sym.Code, &sym.Pragmas, &blob); err != nil {
			continue
		}
		sym.Distance = cosineDistance(vector, decodeEmbedding(blob))
		sym.SimilarityScore = 1 - sym.Distance/2
		results = append(results, sym)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// UpdateSymbolEmbeddings overwrites all four vectors and metadata on one row.
func (s *SQLiteStore) UpdateSymbolEmbeddings(ctx context.Context, symbolID int64, doc, sig, name, combined []float32, model, version string, dimension int) bool {
	for _, v := range [][]float32{doc, sig, name, combined} {
		if err := vectorliteral.CheckDimension(v, dimension); err != nil {
			return false
		}
	}
	_, err := s.db.ExecContext(ctx, `UPDATE symbol SET
		documentation_embedding = ?, signature_embedding = ?, name_embedding = ?, combined_embedding = ?,
		embedding_model = ?, embedding_version = ? WHERE id = ?`,
		nullableBlob(doc), nullableBlob(sig), nullableBlob(name), nullableBlob(combined),
		model, version, symbolID)
	return err == nil
}

// ClearSymbols wipes the whole symbol table, matching the documented
// wipe-all open-question resolution.
func (s *SQLiteStore) ClearSymbols(ctx context.Context) bool {
	_, err := s.db.ExecContext(ctx, `DELETE FROM symbol`)
	return err == nil
}

// InsertFileDependency upserts by (source, target).
func (s *SQLiteStore) InsertFileDependency(ctx context.Context, source, target string) bool {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_dependency (source_file, target_file, created, updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(source_file, target_file) DO UPDATE SET updated = excluded.updated`,
		source, target, ts, ts)
	return err == nil
}

// GetFileDependencies filters by either endpoint.
func (s *SQLiteStore) GetFileDependencies(ctx context.Context, source, target string) []FileDependency {
	sqlQuery := `SELECT id, source_file, target_file, created, updated FROM file_dependency WHERE 1=1`
	var args []interface{}
	if source != "" {
		sqlQuery += " AND source_file = ?"
		args = append(args, source)
	}
	if target != "" {
		sqlQuery += " AND target_file = ?"
		args = append(args, target)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var deps []FileDependency
	for rows.Next() {
		var d FileDependency
		if err := rows.Scan(&d.ID, &d.SourceFile, &d.TargetFile, &d.Created, &d.Updated); err != nil {
			continue
		}
		deps = append(deps, d)
	}
	return deps
}

// ClearFileDependencies deletes per-source, or truncates when source=="".
func (s *SQLiteStore) ClearFileDependencies(ctx context.Context, source string) bool {
	var err error
	if source == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM file_dependency`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM file_dependency WHERE source_file = ?`, source)
	}
	return err == nil
}

// InsertFileModification upserts by path.
func (s *SQLiteStore) InsertFileModification(ctx context.Context, path string, modTime, size int64, hash string) bool {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_modification (file_path, modification_time, file_size, hash, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET modification_time = excluded.modification_time,
			file_size = excluded.file_size, hash = excluded.hash, updated = excluded.updated`,
		path, modTime, size, hash, ts, ts)
	return err == nil
}

// GetFileModification looks up the tracking record for path.
func (s *SQLiteStore) GetFileModification(ctx context.Context, path string) (*FileModification, bool) {
	var fm FileModification
	fm.FilePath = path
	row := s.db.QueryRowContext(ctx, `SELECT modification_time, file_size, hash, created, updated
		FROM file_modification WHERE file_path = ?`, path)
	if err := row.Scan(&fm.ModificationTime, &fm.FileSize, &fm.Hash, &fm.Created, &fm.Updated); err != nil {
		return nil, false
	}
	return &fm, true
}

// GetProjectStats aggregates COUNT/GROUP BY queries into a summary.
func (s *SQLiteStore) GetProjectStats(ctx context.Context) ProjectStats {
	stats := ProjectStats{SymbolsByType: make(map[string]int)}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbol`).Scan(&stats.TotalSymbols)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM module`).Scan(&stats.TotalModules)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_dependency`).Scan(&stats.TotalDeps)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_modification`).Scan(&stats.FilesTracked)
	s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(file_size), 0) FROM file_modification`).Scan(&stats.TotalBytesTracked)

	rows, err := s.db.QueryContext(ctx, `SELECT symbol_type, COUNT(*) FROM symbol GROUP BY symbol_type`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var t string
			var c int
			if rows.Scan(&t, &c) == nil {
				stats.SymbolsByType[t] = c
			}
		}
	}
	return stats
}

// GetEmbeddingStats reports how many symbols have a combined embedding.
func (s *SQLiteStore) GetEmbeddingStats(ctx context.Context) EmbeddingStats {
	var stats EmbeddingStats
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbol`).Scan(&stats.TotalSymbols)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbol WHERE combined_embedding IS NOT NULL`).Scan(&stats.EmbeddedSymbols)
	if stats.TotalSymbols > 0 {
		stats.CoveragePercent = float64(stats.EmbeddedSymbols) / float64(stats.TotalSymbols) * 100
	}
	return stats
}

// ListRegisteredDirectories returns the persisted directory list.
func (s *SQLiteStore) ListRegisteredDirectories(ctx context.Context) []RegisteredDirectory {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, name, description, created FROM registered_directory ORDER BY id`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var dirs []RegisteredDirectory
	for rows.Next() {
		var d RegisteredDirectory
		if err := rows.Scan(&d.ID, &d.Path, &d.Name, &d.Description, &d.Created); err != nil {
			continue
		}
		dirs = append(dirs, d)
	}
	return dirs
}

// InsertRegisteredDirectory upserts by path.
func (s *SQLiteStore) InsertRegisteredDirectory(ctx context.Context, path, name, description string) bool {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registered_directory (path, name, description, created) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name, description = excluded.description`,
		path, name, description, now())
	return err == nil
}
