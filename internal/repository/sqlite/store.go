// 文件路径: internal/repository/sqlite/store.go
package sqlite

import (
	"database/sql"

	"github.com/creamcroissant/orderdesk/internal/repository"
)

// Store wires SQLite-backed repository implementations.
type Store struct {
	db      *sql.DB
	audits  repository.AuditRepository
	watches repository.WatchRepository
}

// NewStore constructs a SQLite-backed repository store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		audits:  newAuditRepo(db),
		watches: newWatchRepo(db),
	}
}

func (s *Store) Audits() repository.AuditRepository {
	return s.audits
}

func (s *Store) Watches() repository.WatchRepository {
	return s.watches
}

// DB exposes the underlying handle for migrations and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

var _ repository.Store = (*Store)(nil)
