package web

import (
	"context"
	stderrors "errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/y-hirakaw/webcalc/internal/config"
	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/i18n"
	"github.com/y-hirakaw/webcalc/internal/session"
)

// Version はサーバーのバージョン
const Version = "0.1.0"

// shutdownTimeout はグレースフルシャットダウンの待ち時間
const shutdownTimeout = 5 * time.Second

// Server は電卓セッションを配信するWebサーバー
type Server struct {
	config    *config.Config
	sessions  *session.Manager
	startedAt time.Time
}

// NewServer は新しいWebサーバーを作成する
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		config: cfg,
		sessions: session.NewManager(
			session.WithTTL(time.Duration(cfg.SessionTTL)),
			session.WithSweepInterval(time.Duration(cfg.SweepInterval)),
		),
		startedAt: time.Now(),
	}
}

// PrepareLocale は既定のロケールを設定し、messages_file があれば翻訳を上書きする
func PrepareLocale(fs afero.Fs, cfg *config.Config) error {
	i18n.SetLocale(cfg.Locale())
	if cfg.MessagesFile == "" {
		return nil
	}

	data, err := afero.ReadFile(fs, cfg.MessagesFile)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "messages_load_failed", cfg.MessagesFile)
	}
	if err := i18n.LoadCatalogJSON(data); err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "messages_load_failed", cfg.MessagesFile)
	}
	return nil
}

// Sessions はセッションマネージャーを返す
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// GetConfig は設定を取得する
func (s *Server) GetConfig() *config.Config {
	return s.config
}

// IsHealthy はサーバーの健全性をチェックする
func (s *Server) IsHealthy() bool {
	return s.sessions != nil
}

// Uptime は起動からの経過時間を返す
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// ListenAndServe は設定されたポートで待ち受けを開始する
func (s *Server) ListenAndServe(ctx context.Context, handler http.Handler) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeNetwork, "listen_failed")
	}
	return s.Serve(ctx, ln, handler)
}

// Serve はコンテキストが終了するまでHTTPサーバーとセッション掃除を実行する
func (s *Server) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.sessions.Run(gctx)
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapError(err, errors.ErrorTypeNetwork, "listen_failed")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("🛑 Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
