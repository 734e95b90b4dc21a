package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/creamcroissant/orderdesk/internal/repository"
)

type watchRepo struct {
	db *sql.DB
}

func newWatchRepo(db *sql.DB) *watchRepo {
	return &watchRepo{db: db}
}

// Upsert keeps created_at and last-seen fields of an existing watch.
func (r *watchRepo) Upsert(ctx context.Context, watch *repository.WatchedOrder) error {
	now := time.Now().Unix()
	if watch.CreatedAt == 0 {
		watch.CreatedAt = now
	}
	watch.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watched_orders (order_id, label, added_by, last_status, last_checked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			label = excluded.label,
			added_by = excluded.added_by,
			updated_at = excluded.updated_at
	`,
		watch.OrderID, watch.Label, watch.AddedBy, watch.LastStatus,
		nullableInt(watch.LastCheckedAt), watch.CreatedAt, watch.UpdatedAt,
	)
	return err
}

func (r *watchRepo) Find(ctx context.Context, orderID string) (*repository.WatchedOrder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT order_id, label, added_by, last_status, last_checked_at, created_at, updated_at
		FROM watched_orders WHERE order_id = ?
	`, orderID)
	watch, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return watch, err
}

func (r *watchRepo) List(ctx context.Context) ([]*repository.WatchedOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, label, added_by, last_status, last_checked_at, created_at, updated_at
		FROM watched_orders ORDER BY created_at ASC, order_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []*repository.WatchedOrder
	for rows.Next() {
		watch, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, watch)
	}
	return watches, rows.Err()
}

func (r *watchRepo) RecordStatus(ctx context.Context, orderID, status string, checkedAt int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE watched_orders SET last_status = ?, last_checked_at = ?, updated_at = ?
		WHERE order_id = ?
	`, status, checkedAt, time.Now().Unix(), orderID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *watchRepo) Delete(ctx context.Context, orderID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM watched_orders WHERE order_id = ?", orderID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatch(row rowScanner) (*repository.WatchedOrder, error) {
	var (
		w         repository.WatchedOrder
		checkedAt sql.NullInt64
	)
	if err := row.Scan(&w.OrderID, &w.Label, &w.AddedBy, &w.LastStatus, &checkedAt, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.LastCheckedAt = nullableIntPtr(checkedAt)
	return &w, nil
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
