package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creamcroissant/orderdesk/internal/repository"
)

type auditRepo struct {
	db *sql.DB
}

func newAuditRepo(db *sql.DB) *auditRepo {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, audit *repository.TransitionAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt == 0 {
		audit.CreatedAt = time.Now().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transition_audit (
			id, order_id, action, from_status, to_status,
			actor, note, outcome, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		audit.ID, audit.OrderID, audit.Action, audit.FromStatus, audit.ToStatus,
		audit.Actor, audit.Note, audit.Outcome, audit.Error, audit.CreatedAt,
	)
	return err
}

func (r *auditRepo) buildFilter(filter repository.AuditFilter) (string, []any) {
	query := strings.Builder{}
	args := make([]any, 0)

	query.WriteString(" WHERE 1=1")

	if filter.OrderID != "" {
		query.WriteString(" AND order_id = ?")
		args = append(args, filter.OrderID)
	}
	if filter.Outcome != "" {
		query.WriteString(" AND outcome = ?")
		args = append(args, filter.Outcome)
	}
	if filter.StartAt != nil {
		query.WriteString(" AND created_at >= ?")
		args = append(args, *filter.StartAt)
	}
	if filter.EndAt != nil {
		query.WriteString(" AND created_at <= ?")
		args = append(args, *filter.EndAt)
	}

	return query.String(), args
}

func (r *auditRepo) List(ctx context.Context, filter repository.AuditFilter) ([]*repository.TransitionAudit, error) {
	where, args := r.buildFilter(filter)

	query := `
		SELECT id, order_id, action, from_status, to_status,
		       actor, note, outcome, error, created_at
		FROM transition_audit
	` + where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, clampLimit(filter.Limit), offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*repository.TransitionAudit
	for rows.Next() {
		var a repository.TransitionAudit
		if err := rows.Scan(
			&a.ID, &a.OrderID, &a.Action, &a.FromStatus, &a.ToStatus,
			&a.Actor, &a.Note, &a.Outcome, &a.Error, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		audits = append(audits, &a)
	}
	return audits, rows.Err()
}

func (r *auditRepo) Count(ctx context.Context, filter repository.AuditFilter) (int64, error) {
	where, args := r.buildFilter(filter)

	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transition_audit"+where, args...).Scan(&count)
	return count, err
}

func (r *auditRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM transition_audit WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
