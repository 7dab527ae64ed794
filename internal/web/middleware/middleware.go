package middleware

import (
	"bufio"
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/y-hirakaw/webcalc/internal/i18n"
)

// Middleware はHTTPミドルウェアの型
type Middleware func(http.Handler) http.Handler

// Chain は複数のミドルウェアを連鎖させる（先頭のものが最も外側になる）
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Logger はリクエストログを出力するミドルウェア
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// カスタムResponseWriterでステータスコードをキャプチャ
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		log.Printf("%s %s %d %v %s",
			r.Method,
			r.URL.Path,
			ww.statusCode,
			time.Since(start),
			r.UserAgent(),
		)
	})
}

// responseWriter はステータスコードをキャプチャするためのラッパー
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack は WebSocket のアップグレードのために下位の接続を渡す
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijack not supported by %T", rw.ResponseWriter)
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Flush は http.Flusher を実装する
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Recover はパニックを捕捉するミドルウェア
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %v", err)
				WriteJSONError(w, http.StatusInternalServerError,
					i18n.TL(GetLocaleFromContext(r.Context()), "internal_error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// CORS はCORSヘッダーを設定するミドルウェア
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Language")

		// プリフライトリクエストの処理
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Security はセキュリティヘッダーを設定するミドルウェア
func Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"connect-src 'self' ws: wss:")

		next.ServeHTTP(w, r)
	})
}

// localeKey はコンテキストに格納するロケールのキー
type localeKey struct{}

// I18n は言語を判定してコンテキストに設定するミドルウェアを返す
//
// 優先順位: X-Language ヘッダー → lang クエリパラメータ → Accept-Language ヘッダー → defaultLocale
func I18n(defaultLocale i18n.Locale) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := defaultLocale

			if l, ok := i18n.ParseLocale(r.Header.Get("X-Language")); ok {
				locale = l
			} else if l, ok := i18n.ParseLocale(r.URL.Query().Get("lang")); ok {
				locale = l
			} else if acceptLang := r.Header.Get("Accept-Language"); acceptLang != "" {
				if l, ok := i18n.ParseLocale(acceptLang[:min(2, len(acceptLang))]); ok {
					locale = l
				}
			}

			ctx := WithLocale(r.Context(), locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithLocale はロケールを設定したコンテキストを返す
func WithLocale(ctx context.Context, locale i18n.Locale) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext はコンテキストから言語情報を取得する
func GetLocaleFromContext(ctx context.Context) i18n.Locale {
	if locale, ok := ctx.Value(localeKey{}).(i18n.Locale); ok {
		return locale
	}
	return i18n.LocaleJA
}

// JSON はJSONレスポンス用のヘッダーを設定するミドルウェア
func JSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// Gzip はレスポンスをgzip圧縮するミドルウェア
func Gzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// rateWindow はレート制限の集計期間
const rateWindow = time.Minute

// RateLimit は簡単なレート制限ミドルウェア（0以下で無効）
// trustProxy が false の場合は X-Forwarded-For などを無視し、接続元アドレスで数える
func RateLimit(requestsPerMinute int, trustProxy bool) Middleware {
	limiter := &rateLimiter{
		limit:   requestsPerMinute,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}

	return func(next http.Handler) http.Handler {
		if requestsPerMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(getClientIP(r, trustProxy)) {
				WriteJSONError(w, http.StatusTooManyRequests,
					i18n.TL(GetLocaleFromContext(r.Context()), "rate_limit_exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter はクライアントごとの直近のリクエスト時刻を保持する
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	clients   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// allow はリクエストを受け付けるかを判定し、受け付けた場合は記録する
func (l *rateLimiter) allow(clientIP string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// 集計期間ごとに、しばらくアクセスのないクライアントを削除
	if now.Sub(l.lastSweep) >= rateWindow {
		for ip, times := range l.clients {
			if len(times) == 0 || now.Sub(times[len(times)-1]) >= rateWindow {
				delete(l.clients, ip)
			}
		}
		l.lastSweep = now
	}

	validTimes := l.clients[clientIP][:0]
	for _, t := range l.clients[clientIP] {
		if now.Sub(t) < rateWindow {
			validTimes = append(validTimes, t)
		}
	}
	if len(validTimes) >= l.limit {
		l.clients[clientIP] = validTimes
		return false
	}
	l.clients[clientIP] = append(validTimes, now)
	return true
}

// getClientIP はクライアントのIPアドレスを取得する
// 転送ヘッダーは trustProxy が true の場合のみ参照する
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			return strings.TrimSpace(ips[0])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BasicAuth はbcryptハッシュと照合する基本認証ミドルウェア
// username か passwordHash が空の場合は認証をスキップする
func BasicAuth(username, passwordHash string) Middleware {
	return func(next http.Handler) http.Handler {
		if username == "" || passwordHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="webcalc"`)
				WriteJSONError(w, http.StatusUnauthorized,
					i18n.TL(GetLocaleFromContext(r.Context()), "unauthorized"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// errorResponse はJSONエラーレスポンスの形式
type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// WriteJSONError はJSON形式のエラーレスポンスを書き込む
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Status: statusCode})
}
