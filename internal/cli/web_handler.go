package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/y-hirakaw/webcalc/internal/config"
	"github.com/y-hirakaw/webcalc/internal/web"
	"github.com/y-hirakaw/webcalc/internal/web/handlers"
)

// WebHandler はWebサーバーコマンドを処理する
type WebHandler struct {
	app          *App
	fs           afero.Fs
	getenv       func(string) string
	port         int
	lang         string
	configPath   string
	messagesFile string
}

// NewWebHandler は新しいWebHandlerを作成する
func NewWebHandler(app *App) *WebHandler {
	return &WebHandler{
		app:    app,
		fs:     afero.NewOsFs(),
		getenv: os.Getenv,
	}
}

// Command はcobraコマンドを返す
func (h *WebHandler) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator page, session API and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return h.Handle(ctx)
		},
	}
	cmd.Flags().IntVarP(&h.port, "port", "p", 0, "Server port (default: 8080)")
	cmd.Flags().StringVarP(&h.lang, "lang", "l", "", "Default language (ja|en)")
	cmd.Flags().StringVarP(&h.configPath, "config", "c", "", "Config file (.json or .toml)")
	cmd.Flags().StringVar(&h.messagesFile, "messages", "", "JSON file overriding UI messages per locale")
	return cmd
}

// LoadConfig は設定ファイルと環境変数を読み込み、フラグで上書きしてから検証する
func (h *WebHandler) LoadConfig() (*config.Config, error) {
	manager := config.NewManager(h.fs, h.configPath)
	manager.SetGetenv(h.getenv)
	return manager.LoadWithOverrides(config.Overrides{
		Port:         h.port,
		Lang:         h.lang,
		Debug:        h.app.debug,
		MessagesFile: h.messagesFile,
	})
}

// Handle はコンテキストが終了するまでWebサーバーを実行する
func (h *WebHandler) Handle(ctx context.Context) error {
	cfg, err := h.LoadConfig()
	if err != nil {
		return err
	}
	if err := web.PrepareLocale(h.fs, cfg); err != nil {
		return err
	}

	server := web.NewServer(cfg)

	log.Printf("🧮 Calculator server starting on port %d", cfg.Port)
	log.Printf("🗣️  Language: %s", cfg.Lang)
	if cfg.Debug {
		log.Printf("🐛 Debug mode enabled")
	}

	return server.ListenAndServe(ctx, handlers.NewRouter(server))
}
