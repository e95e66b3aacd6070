package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// Store owns the base handle and opens ledger transactions with the
// configured isolation level.
type Store struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
}

func NewStore(db *gorm.DB, isolation string) *Store {
	return &Store{db: db, isolation: ParseIsolation(isolation)}
}

// WithTx runs fn in one transaction. A non-nil return or a panic rolls back;
// the error returned by fn is passed through unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.isolation == sql.LevelDefault {
		return s.db.WithContext(ctx).Transaction(fn)
	}
	return s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: s.isolation})
}

func ParseIsolation(level string) sql.IsolationLevel {
	switch level {
	case "read_committed":
		return sql.LevelReadCommitted
	case "repeatable_read":
		return sql.LevelRepeatableRead
	case "serializable":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
