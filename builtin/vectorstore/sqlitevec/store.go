// Package sqlitevec implements VectorStore using sqlite-vec for vector search
// and FTS5 for BM25 full-text search.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codescope/codescope/pkg/provider"
	"github.com/codescope/codescope/pkg/types"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// Ensure sqlite-vec Auto() is called exactly once before any db connection
	vecAutoOnce sync.Once
)

// SchemaVersion is incremented when schema changes require reindexing.
const SchemaVersion = 1

// Store implements the VectorStore interface using sqlite-vec.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
	enableFTS  bool
}

// New creates a new sqlite-vec store.
func New() *Store {
	return &Store{
		enableFTS: true,
	}
}

// Name returns the store name.
func (s *Store) Name() string {
	return "sqlitevec"
}

// Init initializes the store at the given path. dimensions is the
// embedding size the active provider produces; a vector table with a
// different recorded size that contradicts the index metadata means the
// store is corrupt.
func (s *Store) Init(path string, dimensions int) error {
	s.path = path
	s.dimensions = dimensions

	// Register sqlite-vec extension before opening any database connection.
	vecAutoOnce.Do(func() {
		sqlite_vec.Auto()
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode for concurrent reads, busy_timeout to wait for locks
	// instead of failing immediately
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if _, err := db.Exec("SELECT vec_version()"); err != nil {
		return fmt.Errorf("sqlite-vec extension not available: %w", err)
	}

	if err := s.createSchema(); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.checkVectorTable(); err != nil {
		return err
	}

	if err := s.CheckFTSHealth(); err != nil {
		slog.Warn("FTS index unhealthy, rebuilding", "error", err)
		if rebuildErr := s.RebuildFTS(); rebuildErr != nil {
			slog.Error("failed to rebuild FTS index", "error", rebuildErr)
			// Search still works without FTS.
		}
	}

	return nil
}

// createSchema creates all necessary tables.
func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			language TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_type TEXT NOT NULL,
			name TEXT,
			parent_name TEXT,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path)`)
	if err != nil {
		return err
	}

	if s.enableFTS {
		_, err = s.db.Exec(`
			CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
				id,
				content,
				name,
				content='chunks',
				content_rowid='rowid',
				tokenize='porter unicode61'
			)
		`)
		if err != nil {
			return err
		}

		// Triggers to keep FTS in sync
		_, err = s.db.Exec(`
			CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, id, content, name)
				VALUES (new.rowid, new.id, new.content, new.name);
			END
		`)
		if err != nil {
			return err
		}

		_, err = s.db.Exec(`
			CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, id, content, name)
				VALUES('delete', old.rowid, old.id, old.content, old.name);
			END
		`)
		if err != nil {
			return err
		}

		_, err = s.db.Exec(`
			CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, id, content, name)
				VALUES('delete', old.rowid, old.id, old.content, old.name);
				INSERT INTO chunks_fts(rowid, id, content, name)
				VALUES (new.rowid, new.id, new.content, new.name);
			END
		`)
		if err != nil {
			return err
		}
	}

	// File hash table for incremental indexing
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS file_cache (
			file_path TEXT PRIMARY KEY,
			file_hash TEXT NOT NULL,
			indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	return nil
}

// checkVectorTable creates the vector table on first use and verifies
// the recorded dimension on subsequent opens. A recorded dimension that
// contradicts the index metadata is corruption; a dimension that merely
// differs from the active provider is a pending migration the indexer
// resolves.
func (s *Store) checkVectorTable() error {
	stored, err := s.getVectorDimensions()
	if err != nil {
		return err
	}

	if stored == 0 {
		return s.createVectorTable(s.dimensions)
	}

	if stored != s.dimensions {
		meta, err := s.GetMetadata()
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return err
		}
		if meta != nil && meta.EmbeddingDimensions == s.dimensions {
			// Metadata says the store was built for the active provider,
			// but the vectors have a different size.
			return fmt.Errorf("%w: vector table has %d dimensions, metadata records %d (delete %s and re-index)",
				types.ErrStoreCorrupt, stored, meta.EmbeddingDimensions, s.path)
		}
	}

	return nil
}

func (s *Store) getVectorDimensions() (int, error) {
	row := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'vec_dimensions'")

	var val string
	err := row.Scan(&val)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

// createVectorTable creates the vector table with the specified dimensions.
func (s *Store) createVectorTable(dimensions int) error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding float[%d]
		)
	`, dimensions))
	if err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('vec_dimensions', ?)
	`, strconv.Itoa(dimensions))
	return err
}

// Clear removes all indexed data and rebuilds the vector table for the
// active provider's dimensions. Used for forced re-indexing, including
// provider migrations.
func (s *Store) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM file_cache"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM metadata WHERE key = 'index_metadata'"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if _, err := s.db.Exec("DROP TABLE IF EXISTS chunk_embeddings"); err != nil {
		return err
	}
	return s.createVectorTable(s.dimensions)
}

// Close releases resources and closes connections.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// UpsertChunks stores chunks with their embeddings. Existing IDs are
// replaced, so re-indexing unchanged content is a no-op for the store's
// logical state.
func (s *Store) UpsertChunks(chunks []*types.ChunkWithEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertChunksTx(tx, chunks); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertChunksTx(tx *sql.Tx, chunks []*types.ChunkWithEmbedding) error {
	chunkStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO chunks
		(id, file_path, language, content, chunk_type, name, parent_name, start_line, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	embeddingStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO chunk_embeddings (chunk_id, embedding)
		VALUES (?, ?)
	`)
	if err != nil {
		return err
	}
	defer embeddingStmt.Close()

	for _, cwe := range chunks {
		c := cwe.Chunk

		_, err := chunkStmt.Exec(
			c.ID, c.FilePath, c.Language, c.Content,
			string(c.ChunkType), c.Name, c.ParentName,
			c.StartLine, c.EndLine,
		)
		if err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", c.ID, err)
		}

		if len(cwe.Embedding) > 0 {
			if _, err := embeddingStmt.Exec(c.ID, floatsToBytes(cwe.Embedding)); err != nil {
				return fmt.Errorf("failed to store embedding for %s: %w", c.ID, err)
			}
		}
	}

	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *Store) GetChunk(id string) (*types.Chunk, error) {
	row := s.db.QueryRow(`
		SELECT id, file_path, language, content, chunk_type, name, parent_name, start_line, end_line
		FROM chunks WHERE id = ?
	`, id)

	var chunk types.Chunk
	var chunkType string
	var name, parentName sql.NullString

	err := row.Scan(
		&chunk.ID, &chunk.FilePath, &chunk.Language, &chunk.Content,
		&chunkType, &name, &parentName, &chunk.StartLine, &chunk.EndLine,
	)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	chunk.ChunkType = types.ChunkType(chunkType)
	chunk.Name = name.String
	chunk.ParentName = parentName.String

	return &chunk, nil
}

// DeleteChunksByFile removes all chunks for a file.
func (s *Store) DeleteChunksByFile(filePath string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteChunksByFileTx(tx, filePath); err != nil {
		return err
	}

	return tx.Commit()
}

func deleteChunksByFileTx(tx *sql.Tx, filePath string) error {
	rows, err := tx.Query("SELECT id FROM chunks WHERE file_path = ?", filePath)
	if err != nil {
		return err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.Exec("DELETE FROM chunk_embeddings WHERE chunk_id = ?", id); err != nil {
			return err
		}
	}

	// FTS is updated by trigger.
	_, err = tx.Exec("DELETE FROM chunks WHERE file_path = ?", filePath)
	return err
}

// CommitFile replaces a file's chunks and records its hash in a single
// transaction.
func (s *Store) CommitFile(filePath, hash string, chunks []*types.ChunkWithEmbedding) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteChunksByFileTx(tx, filePath); err != nil {
		return err
	}
	if err := upsertChunksTx(tx, chunks); err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO file_cache (file_path, file_hash, indexed_at)
		VALUES (?, ?, ?)
	`, filePath, hash, time.Now())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Search performs vector, BM25 or hybrid search.
func (s *Store) Search(ctx context.Context, req *types.SearchRequest) ([]*types.SearchResult, error) {
	switch req.Mode {
	case types.SearchModeVector:
		return s.vectorSearch(ctx, req)
	case types.SearchModeBM25:
		return s.bm25Search(ctx, req)
	case types.SearchModeHybrid:
		return s.hybridSearch(ctx, req)
	default:
		return s.vectorSearch(ctx, req)
	}
}

// filterClauses translates request filters into SQL conditions on the
// chunks table alias c.
func filterClauses(filters *types.SearchFilters, args *[]any) []string {
	var clauses []string
	if filters == nil {
		return nil
	}

	if len(filters.Languages) > 0 {
		placeholders := make([]string, len(filters.Languages))
		for i, lang := range filters.Languages {
			placeholders[i] = "?"
			*args = append(*args, lang)
		}
		clauses = append(clauses, "c.language IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(filters.ChunkTypes) > 0 {
		placeholders := make([]string, len(filters.ChunkTypes))
		for i, ct := range filters.ChunkTypes {
			placeholders[i] = "?"
			*args = append(*args, string(ct))
		}
		clauses = append(clauses, "c.chunk_type IN ("+strings.Join(placeholders, ",")+")")
	}
	if filters.PathPrefix != "" {
		*args = append(*args, filters.PathPrefix+"%")
		clauses = append(clauses, "c.file_path LIKE ?")
	}

	return clauses
}

// vectorSearch performs pure vector similarity search.
func (s *Store) vectorSearch(ctx context.Context, req *types.SearchRequest) ([]*types.SearchResult, error) {
	if len(req.QueryVec) == 0 {
		return nil, errors.New("query vector is required for vector search")
	}

	query := `
		SELECT
			ce.chunk_id,
			vec_distance_cosine(ce.embedding, ?) as distance,
			c.file_path, c.language, c.content, c.chunk_type,
			c.name, c.parent_name, c.start_line, c.end_line
		FROM chunk_embeddings ce
		JOIN chunks c ON ce.chunk_id = c.id
	`

	args := []any{floatsToBytes(req.QueryVec)}

	if clauses := filterClauses(req.Filters, &args); len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY distance ASC, ce.chunk_id ASC LIMIT ?"
	args = append(args, req.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", types.ErrSearchFailed, err)
	}
	defer rows.Close()

	var results []*types.SearchResult
	for rows.Next() {
		var (
			chunkID   string
			distance  float64
			chunk     types.Chunk
			chunkType string
		)

		err := rows.Scan(
			&chunkID, &distance,
			&chunk.FilePath, &chunk.Language, &chunk.Content, &chunkType,
			&chunk.Name, &chunk.ParentName, &chunk.StartLine, &chunk.EndLine,
		)
		if err != nil {
			return nil, err
		}

		chunk.ID = chunkID
		chunk.ChunkType = types.ChunkType(chunkType)

		// Cosine distance to similarity score.
		score := float32(1.0 - distance)
		if score < req.MinScore {
			continue
		}

		results = append(results, &types.SearchResult{
			Chunk:       &chunk,
			Score:       score,
			VectorScore: score,
		})
	}

	return results, rows.Err()
}

// bm25Search performs BM25 full-text search.
func (s *Store) bm25Search(ctx context.Context, req *types.SearchRequest) ([]*types.SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("query text is required for BM25 search")
	}

	query := `
		SELECT
			c.id, bm25(chunks_fts) as bm25_score,
			c.file_path, c.language, c.content, c.chunk_type,
			c.name, c.parent_name, c.start_line, c.end_line
		FROM chunks_fts fts
		JOIN chunks c ON fts.id = c.id
		WHERE chunks_fts MATCH ?
	`

	args := []any{escapeFTSQuery(req.Query)}

	for _, clause := range filterClauses(req.Filters, &args) {
		query += " AND " + clause
	}

	query += " ORDER BY bm25_score, c.id ASC LIMIT ?"
	args = append(args, req.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: bm25 search: %v", types.ErrSearchFailed, err)
	}
	defer rows.Close()

	var results []*types.SearchResult
	for rows.Next() {
		var (
			chunkID   string
			bm25Score float64
			chunk     types.Chunk
			chunkType string
		)

		err := rows.Scan(
			&chunkID, &bm25Score,
			&chunk.FilePath, &chunk.Language, &chunk.Content, &chunkType,
			&chunk.Name, &chunk.ParentName, &chunk.StartLine, &chunk.EndLine,
		)
		if err != nil {
			return nil, err
		}

		chunk.ID = chunkID
		chunk.ChunkType = types.ChunkType(chunkType)

		// BM25 scores are negative (lower is better), normalize to 0-1.
		score := float32(1.0 / (1.0 + math.Abs(bm25Score)))

		results = append(results, &types.SearchResult{
			Chunk:     &chunk,
			Score:     score,
			BM25Score: score,
		})
	}

	return results, rows.Err()
}

// hybridSearch combines vector and BM25 search with weighted scoring.
func (s *Store) hybridSearch(ctx context.Context, req *types.SearchRequest) ([]*types.SearchResult, error) {
	candidateLimit := req.Limit * 3

	vectorResults := make(map[string]*types.SearchResult)
	bm25Results := make(map[string]*types.SearchResult)

	if len(req.QueryVec) > 0 {
		vecReq := *req
		vecReq.Mode = types.SearchModeVector
		vecReq.Limit = candidateLimit
		vecReq.MinScore = 0

		results, err := s.vectorSearch(ctx, &vecReq)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			vectorResults[r.Chunk.ID] = r
		}
	}

	if req.Query != "" {
		bm25Req := *req
		bm25Req.Mode = types.SearchModeBM25
		bm25Req.Limit = candidateLimit

		results, err := s.bm25Search(ctx, &bm25Req)
		if err != nil {
			// FTS may be unavailable; fall back to vector-only results.
			if len(vectorResults) == 0 {
				return nil, err
			}
		} else {
			for _, r := range results {
				bm25Results[r.Chunk.ID] = r
			}
		}
	}

	vectorWeight := req.VectorWeight
	bm25Weight := req.BM25Weight
	if vectorWeight == 0 && bm25Weight == 0 {
		vectorWeight = 0.7
		bm25Weight = 0.3
	}

	combined := make(map[string]*types.SearchResult)

	for id, vr := range vectorResults {
		result := &types.SearchResult{
			Chunk:       vr.Chunk,
			VectorScore: vr.VectorScore,
		}
		if br, ok := bm25Results[id]; ok {
			result.BM25Score = br.BM25Score
		}
		result.Score = result.VectorScore*vectorWeight + result.BM25Score*bm25Weight
		combined[id] = result
	}

	for id, br := range bm25Results {
		if _, exists := combined[id]; !exists {
			result := &types.SearchResult{
				Chunk:     br.Chunk,
				BM25Score: br.BM25Score,
			}
			result.Score = result.BM25Score * bm25Weight
			combined[id] = result
		}
	}

	var results []*types.SearchResult
	for _, r := range combined {
		if r.Score < req.MinScore {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	return results, nil
}

// GetMetadata returns index metadata.
func (s *Store) GetMetadata() (*types.IndexMetadata, error) {
	row := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'index_metadata'")

	var jsonData string
	err := row.Scan(&jsonData)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var meta types.IndexMetadata
	if err := json.Unmarshal([]byte(jsonData), &meta); err != nil {
		return nil, fmt.Errorf("%w: unreadable index metadata: %v", types.ErrStoreCorrupt, err)
	}

	return &meta, nil
}

// SetMetadata stores index metadata.
func (s *Store) SetMetadata(meta *types.IndexMetadata) error {
	jsonData, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('index_metadata', ?)
	`, string(jsonData))
	return err
}

// GetStats returns store statistics.
func (s *Store) GetStats() (*types.StoreStats, error) {
	stats := &types.StoreStats{}

	row := s.db.QueryRow("SELECT COUNT(*) FROM chunks")
	if err := row.Scan(&stats.TotalChunks); err != nil {
		return nil, err
	}

	row = s.db.QueryRow("SELECT COUNT(*) FROM file_cache")
	if err := row.Scan(&stats.IndexedFiles); err != nil {
		return nil, err
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.DBSizeBytes = info.Size()
	}

	meta, err := s.GetMetadata()
	if err == nil && meta != nil {
		stats.LastIndexed = meta.LastUpdated
	}

	return stats, nil
}

// GetFileHash returns the stored hash for a file.
func (s *Store) GetFileHash(filePath string) (string, error) {
	row := s.db.QueryRow("SELECT file_hash FROM file_cache WHERE file_path = ?", filePath)

	var hash string
	err := row.Scan(&hash)
	if err == sql.ErrNoRows {
		return "", types.ErrNotFound
	}
	return hash, err
}

// SetFileHash stores the hash for a file.
func (s *Store) SetFileHash(filePath, hash string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO file_cache (file_path, file_hash, indexed_at)
		VALUES (?, ?, ?)
	`, filePath, hash, time.Now())
	return err
}

// GetAllFileHashes returns all stored file hashes.
func (s *Store) GetAllFileHashes() (map[string]string, error) {
	rows, err := s.db.Query("SELECT file_path, file_hash FROM file_cache")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		hashes[path] = hash
	}

	return hashes, rows.Err()
}

// DeleteFileHash removes a file from the hash store.
func (s *Store) DeleteFileHash(filePath string) error {
	_, err := s.db.Exec("DELETE FROM file_cache WHERE file_path = ?", filePath)
	return err
}

// Helper functions

// floatsToBytes converts float32 slice to bytes for sqlite-vec.
func floatsToBytes(floats []float32) []byte {
	bytes := make([]byte, len(floats)*4)
	for i, f := range floats {
		bits := math.Float32bits(f)
		bytes[i*4] = byte(bits)
		bytes[i*4+1] = byte(bits >> 8)
		bytes[i*4+2] = byte(bits >> 16)
		bytes[i*4+3] = byte(bits >> 24)
	}
	return bytes
}

// escapeFTSQuery escapes special characters in FTS5 query.
func escapeFTSQuery(query string) string {
	special := []string{"*", "\"", "(", ")", ":", "-", "^", "~"}
	result := query
	for _, s := range special {
		result = strings.ReplaceAll(result, s, "\""+s+"\"")
	}
	return result
}

// CheckFTSHealth verifies that the FTS index is in sync with the chunks
// table. Returns nil if healthy, error describing the issue otherwise.
func (s *Store) CheckFTSHealth() error {
	if !s.enableFTS {
		return nil
	}

	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='chunks_fts'
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check FTS table existence: %w", err)
	}
	if exists == 0 {
		return nil
	}

	_, err = s.db.Exec(`
		SELECT c.id FROM chunks_fts fts
		JOIN chunks c ON fts.rowid = c.rowid
		LIMIT 1
	`)
	if err != nil {
		return fmt.Errorf("FTS index corrupted: %w", err)
	}

	return nil
}

// RebuildFTS rebuilds the FTS index from the chunks table.
func (s *Store) RebuildFTS() error {
	if !s.enableFTS {
		return nil
	}

	if _, err := s.db.Exec(`INSERT INTO chunks_fts(chunks_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("failed to rebuild FTS index: %w", err)
	}

	return nil
}

// Ensure Store implements VectorStore interface
var _ provider.VectorStore = (*Store)(nil)
