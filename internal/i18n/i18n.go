package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Locale は言語ロケール
type Locale string

const (
	// LocaleJA は日本語
	LocaleJA Locale = "ja"
	// LocaleEN は英語
	LocaleEN Locale = "en"
)

// ParseLocale は文字列をロケールに変換する（未知の値は false）
func ParseLocale(s string) (Locale, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ja":
		return LocaleJA, true
	case "en":
		return LocaleEN, true
	default:
		return "", false
	}
}

// Messages は翻訳メッセージのマップ
type Messages map[string]string

// I18n は国際化システム
type I18n struct {
	mu            sync.RWMutex
	currentLocale Locale
	messages      map[Locale]Messages
	fallback      Locale
}

// NewI18n は新しい国際化システムを作成する
func NewI18n() *I18n {
	i := &I18n{
		currentLocale: LocaleJA,
		messages:      make(map[Locale]Messages),
		fallback:      LocaleEN,
	}

	i.loadDefaultMessages()

	// 環境変数から言語設定を読み込み
	if lang := os.Getenv("WEBCALC_LANG"); lang != "" {
		if locale, ok := ParseLocale(lang); ok {
			i.currentLocale = locale
		}
	} else if lang := os.Getenv("LANG"); lang != "" {
		if strings.HasPrefix(lang, "ja") {
			i.currentLocale = LocaleJA
		} else {
			i.currentLocale = LocaleEN
		}
	}

	return i
}

// SetLocale は現在のロケールを設定する
func (i *I18n) SetLocale(locale Locale) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.currentLocale = locale
}

// GetLocale は現在のロケールを取得する
func (i *I18n) GetLocale() Locale {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.currentLocale
}

// T は現在のロケールで翻訳を取得する
func (i *I18n) T(key string, args ...interface{}) string {
	return i.TL(i.GetLocale(), key, args...)
}

// TL は指定したロケールで翻訳を取得する
func (i *I18n) TL(locale Locale, key string, args ...interface{}) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if message, found := i.messages[locale][key]; found {
		return format(message, args)
	}

	// フォールバック言語で検索
	if message, found := i.messages[i.fallback][key]; found {
		return format(message, args)
	}

	// メッセージが見つからない場合はキーをそのまま返す
	if len(args) > 0 {
		return fmt.Sprintf("%s: %v", key, args)
	}
	return key
}

func format(message string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

// LoadMessagesFromJSON はJSONから翻訳メッセージを読み込み、既存のメッセージに上書きする
func (i *I18n) LoadMessagesFromJSON(locale Locale, data []byte) error {
	var messages Messages
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("メッセージファイルの解析に失敗: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.messages[locale] == nil {
		i.messages[locale] = Messages{}
	}
	for k, v := range messages {
		i.messages[locale][k] = v
	}
	return nil
}

// LoadCatalogJSON はロケールごとのメッセージをまとめたJSONを読み込む
//
//	{"ja": {"page_title": "電卓"}, "en": {"page_title": "Calculator"}}
func (i *I18n) LoadCatalogJSON(data []byte) error {
	var catalog map[string]json.RawMessage
	if err := json.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("メッセージファイルの解析に失敗: %w", err)
	}
	for name, raw := range catalog {
		locale, ok := ParseLocale(name)
		if !ok {
			return fmt.Errorf("未対応のロケール: %s", name)
		}
		if err := i.LoadMessagesFromJSON(locale, raw); err != nil {
			return err
		}
	}
	return nil
}

// ValidateLocale はロケールが有効かどうかを確認する
func (i *I18n) ValidateLocale(locale Locale) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, exists := i.messages[locale]
	return exists
}

// loadDefaultMessages はデフォルトの翻訳メッセージを読み込む
func (i *I18n) loadDefaultMessages() {
	i.messages[LocaleJA] = Messages{
		// 一般的なメッセージ
		"error":       "エラー",
		"caused_by":   "原因",
		"suggestions": "解決策",

		// 画面
		"page_title":      "電卓",
		"button_clear":    "AC",
		"button_delete":   "DEL",
		"keyboard_hint":   "キーボード: 0-9 . + - * / Enter Backspace Esc",
		"connection_lost": "サーバーとの接続が切れました",

		// エラー関連
		"session_not_found":     "セッションが見つかりません: %s",
		"invalid_request":       "リクエストが不正です",
		"invalid_initial_value": "初期値が数値ではありません: %s",
		"method_not_allowed":    "許可されていないメソッドです",
		"internal_error":        "内部エラーが発生しました",
		"rate_limit_exceeded":   "リクエストが多すぎます",
		"unauthorized":          "認証が必要です",
		"config_not_found":      "設定ファイルが見つかりません: %s",
		"invalid_config":        "設定が無効です (%s): %s",
		"config_read_failed":    "設定ファイルの読み込みに失敗しました",
		"config_parse_failed":   "設定ファイルの解析に失敗しました",
		"config_write_failed":   "設定ファイルの書き込みに失敗しました",
		"config_exists":         "設定ファイルは既に存在します: %s",
		"messages_load_failed":  "メッセージファイルの読み込みに失敗しました: %s",
		"listen_failed":         "サーバーの起動に失敗しました",

		// 提案メッセージ
		"suggestion_reload_page":       "ページを再読み込みして新しいセッションを開始してください",
		"suggestion_check_config_path": "--config で指定したパスを確認してください",
	}

	i.messages[LocaleEN] = Messages{
		// General
		"error":       "Error",
		"caused_by":   "Caused by",
		"suggestions": "Suggestions",

		// Page
		"page_title":      "Calculator",
		"button_clear":    "AC",
		"button_delete":   "DEL",
		"keyboard_hint":   "Keyboard: 0-9 . + - * / Enter Backspace Esc",
		"connection_lost": "Connection to the server was lost",

		// Errors
		"session_not_found":     "Session not found: %s",
		"invalid_request":       "Invalid request",
		"invalid_initial_value": "Initial value is not a number: %s",
		"method_not_allowed":    "Method not allowed",
		"internal_error":        "Internal server error",
		"rate_limit_exceeded":   "Rate limit exceeded",
		"unauthorized":          "Unauthorized",
		"config_not_found":      "Configuration file not found: %s",
		"invalid_config":        "Invalid configuration (%s): %s",
		"config_read_failed":    "Failed to read configuration file",
		"config_parse_failed":   "Failed to parse configuration file",
		"config_write_failed":   "Failed to write configuration file",
		"config_exists":         "Configuration file already exists: %s",
		"messages_load_failed":  "Failed to load messages file: %s",
		"listen_failed":         "Failed to start server",

		// Suggestions
		"suggestion_reload_page":       "Reload the page to start a new session",
		"suggestion_check_config_path": "Check the path passed to --config",
	}
}

// Global instance
var (
	globalI18n *I18n
	globalOnce sync.Once
)

// Initialize はグローバルなi18nシステムを初期化する
func Initialize() {
	globalOnce.Do(func() {
		globalI18n = NewI18n()
	})
}

// T はグローバルな翻訳関数
func T(key string, args ...interface{}) string {
	Initialize()
	return globalI18n.T(key, args...)
}

// TL は指定ロケールでのグローバルな翻訳関数
func TL(locale Locale, key string, args ...interface{}) string {
	Initialize()
	return globalI18n.TL(locale, key, args...)
}

// SetLocale はグローバルなロケールを設定する
func SetLocale(locale Locale) {
	Initialize()
	globalI18n.SetLocale(locale)
}

// LoadCatalogJSON はグローバルな翻訳メッセージを上書きする
func LoadCatalogJSON(data []byte) error {
	Initialize()
	return globalI18n.LoadCatalogJSON(data)
}

// GetLocale はグローバルなロケールを取得する
func GetLocale() Locale {
	Initialize()
	return globalI18n.GetLocale()
}
