package errors

import (
	"fmt"
	"strings"

	"github.com/y-hirakaw/webcalc/internal/i18n"
)

// ErrorType はエラーの種類を定義する
type ErrorType int

const (
	// ErrorTypeGeneral は一般的なエラー
	ErrorTypeGeneral ErrorType = iota
	// ErrorTypeInput はリクエストや入力値のエラー
	ErrorTypeInput
	// ErrorTypeSession はセッション関連のエラー
	ErrorTypeSession
	// ErrorTypeConfig は設定関連のエラー
	ErrorTypeConfig
	// ErrorTypeNetwork はネットワーク関連のエラー
	ErrorTypeNetwork
)

// String はエラー種別名を返す
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInput:
		return "input"
	case ErrorTypeSession:
		return "session"
	case ErrorTypeConfig:
		return "config"
	case ErrorTypeNetwork:
		return "network"
	default:
		return "general"
	}
}

// FriendlyError はユーザーフレンドリーなエラー
type FriendlyError struct {
	Type        ErrorType
	Key         string
	Args        []interface{}
	Cause       error
	Suggestions []string
	recoverable bool
}

// Error は error インターフェースを実装する
func (e *FriendlyError) Error() string {
	msg := i18n.T(e.Key, e.Args...)
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap は内部エラーを返す
func (e *FriendlyError) Unwrap() error {
	return e.Cause
}

// Is は種別とキーが一致するフレンドリーエラーを同一とみなす
func (e *FriendlyError) Is(target error) bool {
	t, ok := target.(*FriendlyError)
	if !ok || t == nil {
		return false
	}
	return e.Type == t.Type && e.Key == t.Key
}

// GetMessage は翻訳されたメッセージを取得する
func (e *FriendlyError) GetMessage() string {
	return i18n.T(e.Key, e.Args...)
}

// IsRecoverable はエラーが回復可能かどうかを返す
func (e *FriendlyError) IsRecoverable() bool {
	return e.recoverable
}

// NewError は新しいフレンドリーエラーを作成する
func NewError(errorType ErrorType, key string, args ...interface{}) *FriendlyError {
	return &FriendlyError{
		Type: errorType,
		Key:  key,
		Args: args,
	}
}

// WrapError は既存のエラーをラップする
func WrapError(cause error, errorType ErrorType, key string, args ...interface{}) *FriendlyError {
	return &FriendlyError{
		Type:  errorType,
		Key:   key,
		Args:  args,
		Cause: cause,
	}
}

// WithSuggestions は提案を追加する
func (e *FriendlyError) WithSuggestions(suggestions ...string) *FriendlyError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithRecoverable は回復可能フラグを設定する
func (e *FriendlyError) WithRecoverable(recoverable bool) *FriendlyError {
	e.recoverable = recoverable
	return e
}

// ErrorFormatter はエラーのフォーマッター
type ErrorFormatter struct {
	colorEnabled    bool
	showCause       bool
	showSuggestions bool
}

// NewErrorFormatter は新しいエラーフォーマッターを作成する
func NewErrorFormatter() *ErrorFormatter {
	return &ErrorFormatter{
		colorEnabled:    true,
		showCause:       true,
		showSuggestions: true,
	}
}

// SetColorEnabled はカラー表示を設定する
func (f *ErrorFormatter) SetColorEnabled(enabled bool) {
	f.colorEnabled = enabled
}

// Format はエラーをフォーマットする
func (f *ErrorFormatter) Format(err error) string {
	if err == nil {
		return ""
	}

	var result strings.Builder
	if friendlyErr, ok := err.(*FriendlyError); ok {
		f.formatFriendlyError(&result, friendlyErr)
	} else {
		result.WriteString(f.colorRed(fmt.Sprintf("%s %s: %s", f.getErrorIcon(ErrorTypeGeneral), i18n.T("error"), err.Error())))
	}
	return result.String()
}

// formatFriendlyError はフレンドリーエラーをフォーマットする
func (f *ErrorFormatter) formatFriendlyError(result *strings.Builder, err *FriendlyError) {
	icon := f.getErrorIcon(err.Type)
	result.WriteString(f.colorRed(fmt.Sprintf("%s %s: %s", icon, i18n.T("error"), err.GetMessage())))

	if f.showCause && err.Cause != nil {
		result.WriteString(fmt.Sprintf("\n  %s: %s", i18n.T("caused_by"), err.Cause.Error()))
	}

	if f.showSuggestions && len(err.Suggestions) > 0 {
		result.WriteString(fmt.Sprintf("\n\n💡 %s:", i18n.T("suggestions")))
		for _, suggestion := range err.Suggestions {
			result.WriteString(fmt.Sprintf("\n  %s %s", f.colorYellow("•"), suggestion))
		}
	}
}

// getErrorIcon はエラータイプに応じたアイコンを返す
func (f *ErrorFormatter) getErrorIcon(errorType ErrorType) string {
	switch errorType {
	case ErrorTypeInput:
		return "⌨️"
	case ErrorTypeSession:
		return "🧮"
	case ErrorTypeConfig:
		return "🛠️"
	case ErrorTypeNetwork:
		return "🌐"
	default:
		return "❌"
	}
}

// colorRed は文字列を赤色にする
func (f *ErrorFormatter) colorRed(text string) string {
	if !f.colorEnabled {
		return text
	}
	return fmt.Sprintf("\033[31m%s\033[0m", text)
}

// colorYellow は文字列を黄色にする
func (f *ErrorFormatter) colorYellow(text string) string {
	if !f.colorEnabled {
		return text
	}
	return fmt.Sprintf("\033[33m%s\033[0m", text)
}

// 便利な関数群

// SessionNotFound はセッションが見つからないエラーを作成する
func SessionNotFound(id string) *FriendlyError {
	return NewError(ErrorTypeSession, "session_not_found", id).
		WithSuggestions(i18n.T("suggestion_reload_page")).
		WithRecoverable(true)
}

// InvalidRequest は不正なリクエストのエラーを作成する
func InvalidRequest(cause error) *FriendlyError {
	return WrapError(cause, ErrorTypeInput, "invalid_request").
		WithRecoverable(true)
}

// ConfigNotFound は設定ファイルが見つからないエラーを作成する
func ConfigNotFound(path string) *FriendlyError {
	return NewError(ErrorTypeConfig, "config_not_found", path).
		WithSuggestions(i18n.T("suggestion_check_config_path")).
		WithRecoverable(true)
}

// ConfigInvalid は設定値が不正なエラーを作成する
func ConfigInvalid(field string, reason string) *FriendlyError {
	return NewError(ErrorTypeConfig, "invalid_config", field, reason)
}

// Global formatter instance
var globalFormatter *ErrorFormatter

// FormatError はグローバルなエラーフォーマット関数
func FormatError(err error) string {
	if globalFormatter == nil {
		globalFormatter = NewErrorFormatter()
	}
	return globalFormatter.Format(err)
}
