package handlers

import (
	"net/http"

	"github.com/y-hirakaw/webcalc/internal/web"
	"github.com/y-hirakaw/webcalc/internal/web/middleware"
)

// NewRouter はHTTPルーターを設定する
func NewRouter(server *web.Server) http.Handler {
	cfg := server.GetConfig()
	mux := http.NewServeMux()

	// 圧縮対象のルート
	pages := http.NewServeMux()

	// 電卓ページと静的ファイル
	pageHandler := NewPageHandler(server)
	pages.Handle("GET /{$}", pageHandler.HandleIndex())
	pages.Handle("GET /static/calculator.js", pageHandler.HandleScript())

	// API エンドポイント
	apiHandler := NewAPIHandler(server)
	pages.Handle("POST /api/sessions", apiHandler.HandleCreateSession())
	pages.Handle("GET /api/sessions/{id}", apiHandler.HandleGetSession())
	pages.Handle("POST /api/sessions/{id}/events", apiHandler.HandleEvents())
	pages.Handle("DELETE /api/sessions/{id}", apiHandler.HandleDeleteSession())
	pages.Handle("GET /api/health", apiHandler.HandleHealth())

	var compressed http.Handler = pages
	if cfg.Gzip {
		compressed = middleware.Gzip(pages)
	}
	mux.Handle("/", compressed)

	// WebSocket エンドポイント（接続を乗っ取るため圧縮しない）
	mux.Handle("GET /ws", apiHandler.HandleWebSocket())

	// ミドルウェアを適用
	return middleware.Chain(
		mux,
		middleware.Recover,
		middleware.Logger,
		middleware.CORS,
		middleware.Security,
		middleware.I18n(cfg.Locale()),
		middleware.RateLimit(cfg.RateLimit, cfg.TrustProxy),
		middleware.BasicAuth(cfg.AuthUser, cfg.AuthPasswordHash),
	)
}
