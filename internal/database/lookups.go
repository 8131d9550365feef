package database

import (
	"database/sql"
)

// UpsertLookup inserts or replaces the cached lookup for an app key.
func (db *DB) UpsertLookup(appKey, appName, status string, rawJSON *string, attempts int) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO lookups (app_key, app_name, status, raw_json, attempts)
		VALUES (?, ?, ?, ?, ?)`,
		appKey, appName, status, rawJSON, attempts,
	)
	return err
}

// GetLookup returns the cached lookup for an app key, or nil.
func (db *DB) GetLookup(appKey string) (*Lookup, error) {
	row := db.conn.QueryRow(
		`SELECT app_key, app_name, status, raw_json, attempts, fetched_at
		FROM lookups WHERE app_key = ?`, appKey,
	)

	var l Lookup
	if err := row.Scan(&l.AppKey, &l.AppName, &l.Status, &l.RawJSON, &l.Attempts, &l.FetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// GetLookupsByStatus returns all cached lookups with the given status,
// ordered by app key.
func (db *DB) GetLookupsByStatus(status string) ([]Lookup, error) {
	rows, err := db.conn.Query(
		`SELECT app_key, app_name, status, raw_json, attempts, fetched_at
		FROM lookups WHERE status = ? ORDER BY app_key`, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLookups(rows)
}

// GetAllLookups returns every cached lookup ordered by app key.
func (db *DB) GetAllLookups() ([]Lookup, error) {
	rows, err := db.conn.Query(
		`SELECT app_key, app_name, status, raw_json, attempts, fetched_at
		FROM lookups ORDER BY app_key`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLookups(rows)
}

func scanLookups(rows *sql.Rows) ([]Lookup, error) {
	var lookups []Lookup
	for rows.Next() {
		var l Lookup
		if err := rows.Scan(&l.AppKey, &l.AppName, &l.Status, &l.RawJSON, &l.Attempts, &l.FetchedAt); err != nil {
			return nil, err
		}
		lookups = append(lookups, l)
	}
	return lookups, rows.Err()
}
