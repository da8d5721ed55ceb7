package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "imagededup/errors"
	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/types"

	_ "github.com/mattn/go-sqlite3"
)

// columnMigrations lists columns added after the first schema version
var columnMigrations = []struct {
	name string
	ddl  string
}{
	{"format", "ALTER TABLE images ADD COLUMN format TEXT;"},
	{"content_hash", "ALTER TABLE images ADD COLUMN content_hash TEXT;"},
	{"uniform", "ALTER TABLE images ADD COLUMN uniform INTEGER NOT NULL DEFAULT 0;"},
	{"failed", "ALTER TABLE images ADD COLUMN failed INTEGER NOT NULL DEFAULT 0;"},
	{"error", "ALTER TABLE images ADD COLUMN error TEXT;"},
	{"params_fingerprint", "ALTER TABLE images ADD COLUMN params_fingerprint TEXT;"},
}

// busyTimeoutMillis is how long a connection waits on a locked database
const busyTimeoutMillis = 5000

// openSQLite opens dbPath with a busy timeout and a single connection, so
// concurrent analyses queue their cache writes instead of failing with
// "database is locked"
func openSQLite(dbPath string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s%s_busy_timeout=%d", dbPath, sep, busyTimeoutMillis))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// InitDatabase initializes and returns a database connection
func InitDatabase(dbPath string) (*sql.DB, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if they don't exist
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		format TEXT,
		width INTEGER,
		height INTEGER,
		created_at TEXT,
		modified_at TEXT,
		size INTEGER,
		content_hash TEXT,
		uniform INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		params_fingerprint TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_path ON images(path);
	CREATE TABLE IF NOT EXISTS signatures (
		image_id INTEGER NOT NULL,
		algorithm TEXT NOT NULL,
		angle INTEGER NOT NULL,
		scale REAL NOT NULL,
		hash_size INTEGER NOT NULL,
		bits INTEGER NOT NULL DEFAULT 0,
		hash_hex TEXT,
		failure TEXT,
		PRIMARY KEY (image_id, algorithm, angle, scale, hash_size)
	);`

	_, err = db.Exec(createTableSQL)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Add columns missing from databases created by older versions
	for _, col := range columnMigrations {
		var hasColumn bool
		err = db.QueryRow("SELECT COUNT(*) FROM pragma_table_info('images') WHERE name=?", col.name).Scan(&hasColumn)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("error checking for %s column: %v", col.name, err)
		}
		if hasColumn {
			continue
		}
		if _, err = db.Exec(col.ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("error adding %s column: %v", col.name, err)
		}
		logging.DebugLog("Added '%s' column to existing database schema", col.name)
	}

	if _, err = db.Exec("CREATE INDEX IF NOT EXISTS idx_content_hash ON images(content_hash);"); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenDatabase opens an existing database connection
func OpenDatabase(dbPath string) (*sql.DB, error) {
	return openSQLite(dbPath)
}

// LookupRecord fills rec from the cache when the stored entry has the same
// size, modification time and parameter fingerprint. It reports whether
// rec was filled.
func LookupRecord(db *sql.DB, rec *types.ImageRecord, fingerprint string) (bool, error) {
	var (
		id                   int64
		size                 int64
		modifiedAt, storedFp sql.NullString
		format, contentHash  sql.NullString
		errMsg               sql.NullString
		width, height        sql.NullInt64
		uniform, failed      bool
	)
	err := db.QueryRow(`
		SELECT id, size, modified_at, params_fingerprint, format, width, height, content_hash, uniform, failed, error
		FROM images WHERE path = ?`, rec.Path).Scan(
		&id, &size, &modifiedAt, &storedFp, &format, &width, &height, &contentHash, &uniform, &failed, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error for %s: %w", rec.Path, err)
	}

	if size != rec.Size || storedFp.String != fingerprint {
		return false, nil
	}
	storedTime, err := time.Parse(time.RFC3339Nano, modifiedAt.String)
	if err != nil || !storedTime.Equal(rec.ModTime) {
		logging.DebugLog("Cached entry for %s is stale", rec.Path)
		return false, nil
	}

	bundle, err := loadBundle(db, id)
	if err != nil {
		return false, err
	}
	bundle.Uniform = uniform
	bundle.Failed = failed

	rec.Format = format.String
	rec.Width = int(width.Int64)
	rec.Height = int(height.Int64)
	rec.ContentHash = contentHash.String
	rec.Bundle = bundle
	if failed {
		rec.Err = apperrors.NewDecodeError(errMsg.String, nil).WithPath(rec.Path)
	}
	rec.FromCache = true
	return true, nil
}

func loadBundle(db *sql.DB, imageID int64) (*types.SignatureBundle, error) {
	rows, err := db.Query(`
		SELECT algorithm, angle, scale, hash_size, bits, hash_hex, failure
		FROM signatures WHERE image_id = ?`, imageID)
	if err != nil {
		return nil, fmt.Errorf("cannot query signatures: %w", err)
	}
	defer rows.Close()

	bundle := types.NewSignatureBundle()
	for rows.Next() {
		row, err := scanSignature(rows, false)
		if err != nil {
			return nil, err
		}
		if err := row.apply(bundle); err != nil {
			return nil, err
		}
	}
	return bundle, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// signatureRow is one row of the signatures table
type signatureRow struct {
	imageID int64
	key     types.SignatureKey
	bits    int
	hexStr  sql.NullString
	failure sql.NullString
}

func scanSignature(row rowScanner, withID bool) (signatureRow, error) {
	var r signatureRow
	var alg string
	dest := []any{&alg, &r.key.Angle, &r.key.Scale, &r.key.HashSize, &r.bits, &r.hexStr, &r.failure}
	if withID {
		dest = append([]any{&r.imageID}, dest...)
	}
	if err := row.Scan(dest...); err != nil {
		return r, fmt.Errorf("cannot scan signature: %w", err)
	}
	r.key.Algorithm = types.Algorithm(alg)
	return r, nil
}

// apply adds the row to bundle as either a hash or a recorded failure
func (r signatureRow) apply(bundle *types.SignatureBundle) error {
	if r.failure.Valid {
		bundle.Failures[r.key] = r.failure.String
		return nil
	}
	h, err := imageprocessor.ParseHash(r.key.Algorithm, r.hexStr.String, r.bits)
	if err != nil {
		return fmt.Errorf("corrupt signature %s: %w", r.key, err)
	}
	bundle.Hashes[r.key] = h
	return nil
}

// StoreRecord replaces the cached entry for rec and its signatures
func StoreRecord(db *sql.DB, rec *types.ImageRecord, fingerprint string) error {
	now := time.Now().Format(time.RFC3339)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("cannot begin transaction for %s: %v", rec.Path, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM signatures WHERE image_id IN (SELECT id FROM images WHERE path = ?)", rec.Path); err != nil {
		return fmt.Errorf("cannot clear signatures for %s: %v", rec.Path, err)
	}

	var uniform, failed bool
	var errMsg sql.NullString
	if rec.Bundle != nil {
		uniform = rec.Bundle.Uniform
		failed = rec.Bundle.Failed
	}
	if rec.Err != nil {
		failed = true
		errMsg = sql.NullString{String: rec.Err.Error(), Valid: true}
	}

	res, err := tx.Exec(`
		INSERT OR REPLACE INTO images (
			path, format, width, height, created_at, modified_at, size,
			content_hash, uniform, failed, error, params_fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Path,
		rec.Format,
		rec.Width,
		rec.Height,
		now,
		rec.ModTime.Format(time.RFC3339Nano),
		rec.Size,
		rec.ContentHash,
		uniform,
		failed,
		errMsg,
		fingerprint,
	)
	if err != nil {
		return fmt.Errorf("cannot insert data for %s: %v", rec.Path, err)
	}
	imageID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("cannot read row id for %s: %v", rec.Path, err)
	}

	if rec.Bundle != nil {
		// Prepare statement to avoid SQL injection
		stmt, err := tx.Prepare(`
			INSERT INTO signatures (image_id, algorithm, angle, scale, hash_size, bits, hash_hex, failure)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("cannot prepare statement for %s: %v", rec.Path, err)
		}
		defer stmt.Close()

		for key, h := range rec.Bundle.Hashes {
			if _, err := stmt.Exec(imageID, string(key.Algorithm), key.Angle, key.Scale, key.HashSize,
				h.Bits(), imageprocessor.HexString(h), nil); err != nil {
				return fmt.Errorf("cannot insert signature %s for %s: %v", key, rec.Path, err)
			}
		}
		for key, msg := range rec.Bundle.Failures {
			if _, err := stmt.Exec(imageID, string(key.Algorithm), key.Angle, key.Scale, key.HashSize,
				0, nil, msg); err != nil {
				return fmt.Errorf("cannot insert failure %s for %s: %v", key, rec.Path, err)
			}
		}
	}

	return tx.Commit()
}

// LoadAllRecords returns every cached record stored with fingerprint,
// ordered by path
func LoadAllRecords(db *sql.DB, fingerprint string) ([]*types.ImageRecord, error) {
	rows, err := db.Query(`
		SELECT id, path, size, modified_at, format, width, height, content_hash, uniform, failed, error
		FROM images WHERE params_fingerprint = ? ORDER BY path`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("cannot query images: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*types.ImageRecord)
	var records []*types.ImageRecord
	for rows.Next() {
		var (
			id                  int64
			rec                 types.ImageRecord
			modifiedAt          sql.NullString
			format, contentHash sql.NullString
			errMsg              sql.NullString
			width, height       sql.NullInt64
			uniform, failed     bool
		)
		if err := rows.Scan(&id, &rec.Path, &rec.Size, &modifiedAt, &format, &width, &height,
			&contentHash, &uniform, &failed, &errMsg); err != nil {
			return nil, fmt.Errorf("cannot scan image: %w", err)
		}
		rec.ModTime, _ = time.Parse(time.RFC3339Nano, modifiedAt.String)
		rec.Format = format.String
		rec.Width = int(width.Int64)
		rec.Height = int(height.Int64)
		rec.ContentHash = contentHash.String
		rec.Bundle = types.NewSignatureBundle()
		rec.Bundle.Uniform = uniform
		rec.Bundle.Failed = failed
		if failed {
			rec.Err = apperrors.NewDecodeError(errMsg.String, nil).WithPath(rec.Path)
		}
		rec.FromCache = true
		byID[id] = &rec
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the only connection before the signatures query
	rows.Close()

	sigRows, err := db.Query(`
		SELECT s.image_id, s.algorithm, s.angle, s.scale, s.hash_size, s.bits, s.hash_hex, s.failure
		FROM signatures s JOIN images i ON i.id = s.image_id
		WHERE i.params_fingerprint = ?`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("cannot query signatures: %w", err)
	}
	defer sigRows.Close()

	for sigRows.Next() {
		row, err := scanSignature(sigRows, true)
		if err != nil {
			return nil, err
		}
		rec, ok := byID[row.imageID]
		if !ok {
			continue
		}
		if err := row.apply(rec.Bundle); err != nil {
			return nil, err
		}
	}
	return records, sigRows.Err()
}

// ScanStats contains statistics about the cached images
type ScanStats struct {
	TotalImages   int
	ErrorCount    int
	UniformImages int
	UniqueHashes  int
}

// GetScanStats retrieves statistics about cached images
func GetScanStats(db *sql.DB) (*ScanStats, error) {
	var stats ScanStats

	err := db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(failed), 0),
		       COALESCE(SUM(uniform), 0),
		       COUNT(DISTINCT content_hash)
		FROM images`).Scan(&stats.TotalImages, &stats.ErrorCount, &stats.UniformImages, &stats.UniqueHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan stats: %v", err)
	}

	return &stats, nil
}
