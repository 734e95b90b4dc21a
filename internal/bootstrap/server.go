// 文件路径: internal/bootstrap/server.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/creamcroissant/orderdesk/internal/config"
)

// NewHTTPServer constructs the admin http.Server with conservative defaults.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}
}
