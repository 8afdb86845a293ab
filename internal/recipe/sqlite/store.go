// Package sqlite implements a recipe store in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/recipe"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite recipe database.
type Store struct {
	db *sql.DB
}

var _ dedup.RecipeStore = &Store{}
var _ recipe.Saver = &Store{}

// Open opens or creates the recipe database at the given path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.Fatal("recipe database path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "sql.Open")
	}
	store := &Store{db: db}
	if err := store.applyPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	debug.Log("opened recipe database %v", path)
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyPragmas(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrap(err, pragma)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
)`); err != nil {
		return errors.WithStack(err)
	}

	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return errors.WithStack(err)
	}
	if version < 1 {
		if err = applyV1(ctx, tx); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations(version, applied_at) VALUES(1, ?)", time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(tx.Commit())
}

func applyV1(ctx context.Context, tx *sql.Tx) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS versions (
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			file_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			version INTEGER NOT NULL REFERENCES versions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			PRIMARY KEY(version, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			version INTEGER NOT NULL,
			file_seq INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			fp BLOB NOT NULL,
			size INTEGER NOT NULL,
			container INTEGER NOT NULL,
			PRIMARY KEY(version, file_seq, seq),
			FOREIGN KEY(version, file_seq) REFERENCES files(version, seq) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_container_idx ON chunks(container)`,
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// SaveVersion stores v in a single transaction, replacing a previous version
// with the same id.
func (s *Store) SaveVersion(ctx context.Context, v *recipe.Version) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// foreign_keys is a per-connection setting, don't rely on cascading deletes
	for _, stmt := range []string{
		"DELETE FROM chunks WHERE version = ?",
		"DELETE FROM files WHERE version = ?",
		"DELETE FROM versions WHERE id = ?",
	} {
		if _, err = tx.ExecContext(ctx, stmt, v.ID); err != nil {
			return errors.WithStack(err)
		}
	}
	if _, err = tx.ExecContext(ctx, "INSERT INTO versions(id, path, file_count) VALUES(?, ?, ?)", v.ID, v.Path, len(v.Files)); err != nil {
		return errors.WithStack(err)
	}

	fileStmt, err := tx.PrepareContext(ctx, "INSERT INTO files(version, seq, name, chunk_count) VALUES(?, ?, ?, ?)")
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = fileStmt.Close()
	}()

	chunkStmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks(version, file_seq, seq, fp, size, container) VALUES(?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		_ = chunkStmt.Close()
	}()

	for i, f := range v.Files {
		if _, err = fileStmt.ExecContext(ctx, v.ID, i, f.Name, len(f.Chunks)); err != nil {
			return errors.Wrapf(err, "insert file %v", f.Name)
		}
		for j, c := range f.Chunks {
			if _, err = chunkStmt.ExecContext(ctx, v.ID, i, j, c.Fingerprint[:], c.Size, int64(c.ContainerID)); err != nil {
				return errors.Wrapf(err, "insert chunk %d of %v", j, f.Name)
			}
		}
	}

	debug.Log("saved version %d: %d files", v.ID, len(v.Files))
	return errors.WithStack(tx.Commit())
}

// Versions returns the ids of all stored versions in ascending order.
func (s *Store) Versions(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM versions ORDER BY id")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.WithStack(err)
		}
		ids = append(ids, id)
	}
	return ids, errors.WithStack(rows.Err())
}

// OpenVersion returns a reader for the backup version id.
func (s *Store) OpenVersion(ctx context.Context, id int) (dedup.BackupVersion, error) {
	v := &version{db: s.db, id: id, file: -1}
	err := s.db.QueryRowContext(ctx, "SELECT path, file_count FROM versions WHERE id = ?", id).Scan(&v.path, &v.fileCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(recipe.ErrVersionNotFound, "version %d", id)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

type version struct {
	db        *sql.DB
	id        int
	path      string
	fileCount int

	file  int
	chunk int
}

func (v *version) ID() int        { return v.id }
func (v *version) Path() string   { return v.path }
func (v *version) FileCount() int { return v.fileCount }

func (v *version) NextFileMeta(ctx context.Context) (dedup.FileRecipeMeta, error) {
	if v.file+1 >= v.fileCount {
		return dedup.FileRecipeMeta{}, io.EOF
	}

	var meta dedup.FileRecipeMeta
	err := v.db.QueryRowContext(ctx, "SELECT name, chunk_count FROM files WHERE version = ? AND seq = ?", v.id, v.file+1).
		Scan(&meta.Name, &meta.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return dedup.FileRecipeMeta{}, errors.Errorf("version %d: file %d missing", v.id, v.file+1)
	}
	if err != nil {
		return dedup.FileRecipeMeta{}, errors.WithStack(err)
	}

	v.file++
	v.chunk = 0
	return meta, nil
}

func (v *version) NextChunkPointers(ctx context.Context, n int) ([]dedup.ChunkPointer, error) {
	if v.file < 0 {
		return nil, errors.New("no current file")
	}

	rows, err := v.db.QueryContext(ctx,
		"SELECT fp, size, container FROM chunks WHERE version = ? AND file_seq = ? AND seq >= ? ORDER BY seq LIMIT ?",
		v.id, v.file, v.chunk, n)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ptrs := make([]dedup.ChunkPointer, 0, n)
	for rows.Next() {
		var (
			fp        []byte
			size      int
			container int64
		)
		if err := rows.Scan(&fp, &size, &container); err != nil {
			return nil, errors.WithStack(err)
		}
		if len(fp) != len(dedup.Fingerprint{}) {
			return nil, errors.Errorf("version %d: invalid fingerprint length %d", v.id, len(fp))
		}

		p := dedup.ChunkPointer{Size: size, ContainerID: dedup.ContainerID(container)}
		copy(p.Fingerprint[:], fp)
		ptrs = append(ptrs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	v.chunk += len(ptrs)
	return ptrs, nil
}

func (v *version) Close() error {
	return nil
}
