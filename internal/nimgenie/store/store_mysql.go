package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/nimgenie/nimgenie/pkg/vectorliteral"
)

// MySQLStore is the primary Symbol Store implementation, talking to a
// MySQL-wire-compatible RDBMS (e.g. TiDB) with native VECTOR(D) columns and
// a vecCosineDistance() function.
type MySQLStore struct {
	db        *sql.DB
	dimension int
}

// Open connects to the DBMS at dsn with the given pool size and ensures the
// schema exists. Schema-creation failures are logged and swallowed per
// §4.4; later operations will simply fail cleanly against an absent schema.
func Open(dsn string, poolSize, dimension int) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if poolSize <= 0 {
		poolSize = 10
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	s := &MySQLStore{db: db, dimension: dimension}
	if err := s.initSchema(); err != nil {
		slog.Error("schema initialization failed", "error", err)
	}
	return s, nil
}

func (s *MySQLStore) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS symbol (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(512) NOT NULL,
			symbol_type VARCHAR(64) NOT NULL,
			module VARCHAR(512) NOT NULL,
			file_path VARCHAR(2048) NOT NULL,
			line INT NOT NULL DEFAULT 0,
			col INT NOT NULL DEFAULT 0,
			signature TEXT,
			documentation TEXT,
			visibility VARCHAR(32),
			code TEXT,
			pragmas TEXT,
			documentation_embedding VECTOR(%d) NULL,
			signature_embedding VECTOR(%d) NULL,
			name_embedding VECTOR(%d) NULL,
			combined_embedding VECTOR(%d) NULL,
			embedding_model VARCHAR(128),
			embedding_version VARCHAR(64),
			created BIGINT NOT NULL,
			KEY idx_symbol_name (name(255)),
			KEY idx_symbol_module (module(255)),
			KEY idx_symbol_type (symbol_type(100)),
			KEY idx_symbol_line (line)
		)`, s.dimension, s.dimension, s.dimension, s.dimension),
		`CREATE TABLE IF NOT EXISTS module (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(512) NOT NULL UNIQUE,
			file_path VARCHAR(2048),
			last_modified BIGINT,
			documentation TEXT,
			created BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS file_dependency (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			source_file VARCHAR(2048) NOT NULL,
			target_file VARCHAR(2048) NOT NULL,
			created BIGINT NOT NULL,
			updated BIGINT NOT NULL,
			UNIQUE KEY uniq_dep (source_file(255), target_file(255)),
			KEY idx_dep_source (source_file(255)),
			KEY idx_dep_target (target_file(255))
		)`,
		`CREATE TABLE IF NOT EXISTS file_modification (
			file_path VARCHAR(2048) NOT NULL,
			modification_time BIGINT,
			file_size BIGINT,
			hash VARCHAR(128),
			created BIGINT NOT NULL,
			updated BIGINT NOT NULL,
			UNIQUE KEY uniq_path (file_path(768)),
			KEY idx_mod_time (modification_time)
		)`,
		`CREATE TABLE IF NOT EXISTS registered_directory (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			path VARCHAR(2048) NOT NULL UNIQUE,
			name VARCHAR(256),
			description TEXT,
			created BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_metadata (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			model_name VARCHAR(128),
			model_version VARCHAR(64),
			dimensions INT,
			embedding_type VARCHAR(32),
			total_symbols INT,
			last_updated BIGINT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	// Optional columnar-replica acceleration; not required for correctness.
	if _, err := s.db.Exec(`ALTER TABLE symbol SET TIFLASH REPLICA 1`); err != nil {
		slog.Warn("columnar replica not available for symbol table", "error", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func now() int64 { return time.Now().UTC().Unix() }

// InsertSymbol inserts the textual fields, then updates whichever vector
// columns have non-empty input. Per testable property 4, a non-empty
// vector of the wrong dimension is rejected (no column update) while the
// textual row is still inserted.
func (s *MySQLStore) InsertSymbol(ctx context.Context, sym Symbol, dimension int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO symbol (name, symbol_type, module, file_path, line, col, signature, documentation,
			visibility, code, pragmas, embedding_model, embedding_version, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.Name, sym.SymbolType, sym.Module, sym.FilePath, sym.Line, sym.Column,
		sym.Signature, sym.Documentation, sym.Visibility, sym.Code, sym.Pragmas,
		sym.EmbeddingModel, sym.EmbeddingVersion, now())
	if err != nil {
		slog.Error("insertSymbol failed", "error", err)
		return -1, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		slog.Error("insertSymbol: could not read inserted id", "error", err)
		return -1, nil
	}

	s.updateVectorColumn(ctx, id, "documentation_embedding", sym.DocumentationEmbedding, dimension)
	s.updateVectorColumn(ctx, id, "signature_embedding", sym.SignatureEmbedding, dimension)
	s.updateVectorColumn(ctx, id, "name_embedding", sym.NameEmbedding, dimension)
	s.updateVectorColumn(ctx, id, "combined_embedding", sym.CombinedEmbedding, dimension)

	return id, nil
}

func (s *MySQLStore) updateVectorColumn(ctx context.Context, id int64, column string, vec []float32, dimension int) {
	if len(vec) == 0 {
		return // NULL preserved; nothing to do.
	}
	if err := vectorliteral.CheckDimension(vec, dimension); err != nil {
		slog.Warn("vector dimension mismatch, leaving column NULL", "column", column, "error", err)
		return
	}
	literal, ok := vectorliteral.Encode(vec)
	if !ok {
		return
	}
	query := fmt.Sprintf(`UPDATE symbol SET %s = ? WHERE id = ?`, column)
	if _, err := s.db.ExecContext(ctx, query, literal, id); err != nil {
		slog.Error("failed to update vector column", "column", column, "error", err)
	}
}

// InsertModule upserts by name.
func (s *MySQLStore) InsertModule(ctx context.Context, name, path string, lastModified int64, doc string) (int64, bool) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO module (name, file_path, last_modified, documentation, created)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE file_path = VALUES(file_path), last_modified = VALUES(last_modified),
			documentation = VALUES(documentation)`,
		name, path, lastModified, doc, now())
	if err != nil {
		slog.Error("insertModule failed", "error", err)
		return -1, false
	}
	id, _ := res.LastInsertId()
	return id, true
}

// SearchSymbols performs a case-insensitive LIKE search with optional
// equality filters, ordered by name.
func (s *MySQLStore) SearchSymbols(ctx context.Context, query string, filter SearchFilter) []Symbol {
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

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		slog.Error("searchSymbols failed", "error", err)
		return nil
	}
	defer rows.Close()

	var results []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.SymbolType, &sym.Module, &sym.FilePath, &sym.Line,
			&sym.Column, &sym.Signature, &sym.Documentation, &sym.Visibility, &sym.Code, &sym.Pragmas); err != nil {
			slog.Error("searchSymbols: row scan failed", "error", err)
			continue
		}
		results = append(results, sym)
	}
	return results
}

// GetSymbolInfo returns all exact-name matches (optionally filtered by
// module), ordered by module so a caller can distinguish duplicate names.
// The error return is ErrNotFound for zero matches; the dispatcher
// surfaces that as {error: "..."}.
func (s *MySQLStore) GetSymbolInfo(ctx context.Context, name, module string) ([]Symbol, error) {
	sqlQuery := `SELECT id, name, symbol_type, module, file_path, line, col, signature, documentation,
		visibility, code, pragmas FROM symbol WHERE name = ?`
	args := []interface{}{name}
	if module != "" {
		sqlQuery += " AND module = ?"
		args = append(args, module)
	}
	sqlQuery += " ORDER BY module"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		slog.Error("getSymbolInfo failed", "error", err)
		return nil, err
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
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results, nil
}

// SemanticSearchSymbols orders by ascending cosine distance against
// combined_embedding, excluding NULL rows, and reports
// similarity_score = 1 - distance/2 per row.
func (s *MySQLStore) SemanticSearchSymbols(ctx context.Context, queryVector []float32, filter SearchFilter) []Symbol {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	literal, ok := vectorliteral.Encode(queryVector)
	if !ok {
		return nil
	}

	sqlQuery := `SELECT id, name, symbol_type, module, file_path, line, col, signature, documentation,
		visibility, code, pragmas, vecCosineDistance(combined_embedding, ?) AS distance
		FROM symbol WHERE combined_embedding IS NOT NULL`
	args := []interface{}{literal}
	if filter.SymbolType != "" {
		sqlQuery += " AND symbol_type = ?"
		args = append(args, filter.SymbolType)
	}
	if filter.Module != "" {
		sqlQuery += " AND module = ?"
		args = append(args, filter.Module)
	}
	sqlQuery += " ORDER BY distance ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		slog.Error("semanticSearchSymbols failed", "error", err)
		return nil
	}
	defer rows.Close()

	var results []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.SymbolType, &sym.Module, &sym.FilePath, &sym.Line,
			&sym.Column, &sym.Signature, &sym.Documentation, &sym.Visibility, &sym.Code, &sym.Pragmas,
			&sym.Distance); err != nil {
			continue
		}
		sym.SimilarityScore = 1 - sym.Distance/2
		results = append(results, sym)
	}
	return results
}

// FindSimilarByEmbedding is SemanticSearchSymbols plus an id <> excludeID
// filter, used for "find symbols similar to this one."
func (s *MySQLStore) FindSimilarByEmbedding(ctx context.Context, vector []float32, excludeID int64, limit int) []Symbol {
	if limit <= 0 {
		limit = 10
	}
	literal, ok := vectorliteral.Encode(vector)
	if !ok {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, symbol_type, module, file_path, line, col, signature,
		documentation, visibility, code, pragmas, vecCosineDistance(combined_embedding, ?) AS distance
		FROM symbol WHERE combined_embedding IS NOT NULL AND id <> ?
		ORDER BY distance ASC LIMIT ?`, literal, excludeID, limit)
	if err != nil {
		slog.Error("findSimilarByEmbedding failed", "error", err)
		return nil
	}
	defer rows.Close()

	var results []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.SymbolType, &sym.Module, &sym.FilePath, &sym.Line,
			&sym.Column, &sym.Signature, &sym.Documentation, &sym.Visibility, &sym.Code, &sym.Pragmas,
			&sym.Distance); err != nil {
			continue
		}
		sym.SimilarityScore = 1 - sym.Distance/2
		results = append(results, sym)
	}
	return results
}

// UpdateSymbolEmbeddings overwrites all four vectors and metadata on one
// row. Unlike InsertSymbol, all four vectors are mandatory parameters
// here, so a dimension mismatch on any of them aborts the whole update.
func (s *MySQLStore) UpdateSymbolEmbeddings(ctx context.Context, symbolID int64, doc, sig, name, combined []float32, model, version string, dimension int) bool {
	for _, v := range [][]float32{doc, sig, name, combined} {
		if err := vectorliteral.CheckDimension(v, dimension); err != nil {
			slog.Warn("updateSymbolEmbeddings rejected", "id", symbolID, "error", err)
			return false
		}
	}

	docLit, docOK := vectorliteral.Encode(doc)
	sigLit, sigOK := vectorliteral.Encode(sig)
	nameLit, nameOK := vectorliteral.Encode(name)
	combinedLit, combinedOK := vectorliteral.Encode(combined)

	_, err := s.db.ExecContext(ctx, `UPDATE symbol SET
		documentation_embedding = ?, signature_embedding = ?, name_embedding = ?, combined_embedding = ?,
		embedding_model = ?, embedding_version = ? WHERE id = ?`,
		nullableLiteral(docLit, docOK), nullableLiteral(sigLit, sigOK),
		nullableLiteral(nameLit, nameOK), nullableLiteral(combinedLit, combinedOK),
		model, version, symbolID)
	if err != nil {
		slog.Error("updateSymbolEmbeddings failed", "error", err)
		return false
	}
	return true
}

func nullableLiteral(literal string, ok bool) interface{} {
	if !ok {
		return nil
	}
	return literal
}

// ClearSymbols wipes the whole symbol table. Per the spec's documented
// open question, this preserves the source's wipe-all semantics rather
// than scoping to a project id.
func (s *MySQLStore) ClearSymbols(ctx context.Context) bool {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM symbol`); err != nil {
		slog.Error("clearSymbols failed", "error", err)
		return false
	}
	return true
}

// InsertFileDependency upserts by (source, target), bumping updated on
// repeat writes.
func (s *MySQLStore) InsertFileDependency(ctx context.Context, source, target string) bool {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_dependency (source_file, target_file, created, updated) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE updated = VALUES(updated)`,
		source, target, ts, ts)
	if err != nil {
		slog.Error("insertFileDependency failed", "error", err)
		return false
	}
	return true
}

// GetFileDependencies filters by either endpoint; an empty argument means
// "no filter on that endpoint."
func (s *MySQLStore) GetFileDependencies(ctx context.Context, source, target string) []FileDependency {
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
		slog.Error("getFileDependencies failed", "error", err)
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
func (s *MySQLStore) ClearFileDependencies(ctx context.Context, source string) bool {
	var err error
	if source == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM file_dependency`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM file_dependency WHERE source_file = ?`, source)
	}
	if err != nil {
		slog.Error("clearFileDependencies failed", "error", err)
		return false
	}
	return true
}

// InsertFileModification upserts by path.
func (s *MySQLStore) InsertFileModification(ctx context.Context, path string, modTime, size int64, hash string) bool {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_modification (file_path, modification_time, file_size, hash, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE modification_time = VALUES(modification_time), file_size = VALUES(file_size),
			hash = VALUES(hash), updated = VALUES(updated)`,
		path, modTime, size, hash, ts, ts)
	if err != nil {
		slog.Error("insertFileModification failed", "error", err)
		return false
	}
	return true
}

// GetFileModification looks up the tracking record for path.
func (s *MySQLStore) GetFileModification(ctx context.Context, path string) (*FileModification, bool) {
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
func (s *MySQLStore) GetProjectStats(ctx context.Context) ProjectStats {
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
// Uses IS NOT NULL, per the spec's corrected open question (the reference
// source's "!= NULL" never matches under standard SQL null semantics).
func (s *MySQLStore) GetEmbeddingStats(ctx context.Context) EmbeddingStats {
	var stats EmbeddingStats
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbol`).Scan(&stats.TotalSymbols)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbol WHERE combined_embedding IS NOT NULL`).Scan(&stats.EmbeddedSymbols)
	if stats.TotalSymbols > 0 {
		stats.CoveragePercent = float64(stats.EmbeddedSymbols) / float64(stats.TotalSymbols) * 100
	}
	return stats
}

// ListRegisteredDirectories returns the persisted directory list.
func (s *MySQLStore) ListRegisteredDirectories(ctx context.Context) []RegisteredDirectory {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, name, description, created FROM registered_directory ORDER BY id`)
	if err != nil {
		slog.Error("listRegisteredDirectories failed", "error", err)
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
func (s *MySQLStore) InsertRegisteredDirectory(ctx context.Context, path, name, description string) bool {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registered_directory (path, name, description, created) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), description = VALUES(description)`,
		path, name, description, now())
	if err != nil {
		slog.Error("insertRegisteredDirectory failed", "error", err)
		return false
	}
	return true
}
