package database

import (
	"database/sql"

	"imagededup/types"
)

// Cache adapts a signature database to the analyzer's cache interface
type Cache struct {
	db *sql.DB
}

// NewCache wraps an initialized database
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// Lookup fills rec from a fresh cached entry
func (c *Cache) Lookup(rec *types.ImageRecord, fingerprint string) (bool, error) {
	return LookupRecord(c.db, rec, fingerprint)
}

// Store writes rec and its bundle
func (c *Cache) Store(rec *types.ImageRecord, fingerprint string) error {
	return StoreRecord(c.db, rec, fingerprint)
}

// Records returns every cached record produced with fingerprint
func (c *Cache) Records(fingerprint string) ([]*types.ImageRecord, error) {
	return LoadAllRecords(c.db, fingerprint)
}
