package db

import (
	"database/sql"
	"fmt"
)

// DB wraps the sqlite connection holding chip accounting and settlement
// history. The external ledger stays authoritative for buy-ins; this store
// is the operator-facing audit trail.
type DB struct {
	*sql.DB
}

// NewDB opens (and if needed initializes) the database at dbPath.
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			chips INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settlements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_ref TEXT NOT NULL,
			player_id TEXT NOT NULL,
			seat INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			hand_rank TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (player_id) REFERENCES players(id)
		)
	`)
	return err
}

// GetPlayerChips returns a player's recorded chip balance.
func (db *DB) GetPlayerChips(playerID string) (int64, error) {
	var chips int64
	err := db.QueryRow("SELECT chips FROM players WHERE id = ?", playerID).Scan(&chips)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("player not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get player chips: %v", err)
	}
	return chips, nil
}

// UpsertPlayer creates or updates a player record with its chip count.
func (db *DB) UpsertPlayer(playerID, name string, chips int64) error {
	_, err := db.Exec(`
		INSERT INTO players (id, name, chips)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = ?, chips = ?
	`, playerID, name, chips, name, chips)
	return err
}

// RecordSettlement writes one hand's payout for a player to the audit trail.
// Chip balances are synced separately via UpsertPlayer; the settlement row
// never mutates them.
func (db *DB) RecordSettlement(gameRef, playerID string, seat int, amount int64, handRank string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO players (id, name, chips)
		VALUES (?, ?, 0)
		ON CONFLICT(id) DO NOTHING
	`, playerID, playerID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO settlements (game_ref, player_id, seat, amount, hand_rank)
		VALUES (?, ?, ?, ?, ?)
	`, gameRef, playerID, seat, amount, handRank)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
