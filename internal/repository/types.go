// 文件路径: internal/repository/types.go
package repository

// TransitionAudit is one attempted lifecycle mutation.
type TransitionAudit struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	Action     string `json:"action"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
	Note       string `json:"note"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// WatchedOrder is an order pinned by an operator for periodic refresh.
type WatchedOrder struct {
	OrderID       string `json:"order_id"`
	Label         string `json:"label"`
	AddedBy       string `json:"added_by"`
	LastStatus    string `json:"last_status"`
	LastCheckedAt *int64 `json:"last_checked_at"` // Unix timestamp
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}
