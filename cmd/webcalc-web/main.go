package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/y-hirakaw/webcalc/internal/config"
	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/i18n"
	"github.com/y-hirakaw/webcalc/internal/web"
	"github.com/y-hirakaw/webcalc/internal/web/handlers"
)

func main() {
	var (
		port       = flag.Int("port", 0, "Server port (default: 8080)")
		configPath = flag.String("config", "", "Config file (.json or .toml)")
		lang       = flag.String("lang", "", "Default language (ja|en)")
		debug      = flag.Bool("debug", false, "Enable debug mode")
		messages   = flag.String("messages", "", "JSON file overriding UI messages per locale")
	)
	flag.Parse()

	// 国際化システムを初期化
	i18n.Initialize()

	fs := afero.NewOsFs()

	// フラグは設定ファイルと環境変数より優先する
	manager := config.NewManager(fs, *configPath)
	cfg, err := manager.LoadWithOverrides(config.Overrides{
		Port:         *port,
		Lang:         *lang,
		Debug:        *debug,
		MessagesFile: *messages,
	})
	if err != nil {
		log.Fatal(errors.FormatError(err))
	}
	if err := web.PrepareLocale(fs, cfg); err != nil {
		log.Fatal(errors.FormatError(err))
	}

	server := web.NewServer(cfg)
	router := handlers.NewRouter(server)

	log.Printf("🧮 Calculator server starting on port %d", cfg.Port)
	log.Printf("🗣️  Language: %s", cfg.Lang)
	log.Printf("⏱️  Session TTL: %s", time.Duration(cfg.SessionTTL))
	if cfg.AuthEnabled() {
		log.Printf("🔒 Basic authentication enabled for user %q", cfg.AuthUser)
	}
	if cfg.Debug {
		log.Printf("🐛 Debug mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, router); err != nil {
		log.Fatalf("Server failed: %s", errors.FormatError(err))
	}
	log.Printf("👋 Server stopped")
}
