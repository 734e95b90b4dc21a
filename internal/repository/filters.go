// 文件路径: internal/repository/filters.go
package repository

// AuditFilter constrains audit listings.
type AuditFilter struct {
	OrderID string
	Outcome string
	StartAt *int64
	EndAt   *int64
	Limit   int
	Offset  int
}
