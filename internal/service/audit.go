package service

import (
	"context"
	"time"

	"github.com/creamcroissant/orderdesk/internal/repository"
)

// AuditService reads and prunes the transition audit log.
type AuditService interface {
	List(ctx context.Context, filter repository.AuditFilter) ([]*repository.TransitionAudit, int64, error)
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

type auditService struct {
	audits repository.AuditRepository
	now    func() time.Time
}

func NewAuditService(store repository.Store) AuditService {
	return &auditService{audits: store.Audits(), now: time.Now}
}

func (s *auditService) List(ctx context.Context, filter repository.AuditFilter) ([]*repository.TransitionAudit, int64, error) {
	audits, err := s.audits.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.audits.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return audits, count, nil
}

// Cleanup deletes entries older than retention. A non-positive retention keeps everything.
func (s *auditService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-retention).Unix()
	return s.audits.DeleteBefore(ctx, cutoff)
}
