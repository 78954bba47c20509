package server

import (
	"github.com/sealdeck/sealdeck/pkg/server/internal/db"
)

// Database is the chip-accounting surface the controller needs.
type Database interface {
	GetPlayerChips(playerID string) (int64, error)
	UpsertPlayer(playerID, name string, chips int64) error
	RecordSettlement(gameRef, playerID string, seat int, amount int64, handRank string) error
	Close() error
}

// NewDatabase opens the sqlite-backed store at dbPath.
func NewDatabase(dbPath string) (Database, error) {
	return db.NewDB(dbPath)
}
