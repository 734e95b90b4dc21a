// 文件路径: internal/repository/interfaces.go
// 模块说明: 本地持久化只保存审计记录与关注列表，订单本身始终以订单服务为准。
package repository

import "context"

// Store 暴露每个聚合根对应的仓储接口。
type Store interface {
	Audits() AuditRepository
	Watches() WatchRepository
}

// AuditRepository 记录每一次状态变更尝试及其结果。
type AuditRepository interface {
	Create(ctx context.Context, audit *TransitionAudit) error
	List(ctx context.Context, filter AuditFilter) ([]*TransitionAudit, error)
	Count(ctx context.Context, filter AuditFilter) (int64, error)
	// DeleteBefore removes entries created before cutoff (unix seconds).
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// WatchRepository 管理管理员关注的订单。
type WatchRepository interface {
	Upsert(ctx context.Context, watch *WatchedOrder) error
	Find(ctx context.Context, orderID string) (*WatchedOrder, error)
	List(ctx context.Context) ([]*WatchedOrder, error)
	RecordStatus(ctx context.Context, orderID, status string, checkedAt int64) error
	Delete(ctx context.Context, orderID string) error
}
