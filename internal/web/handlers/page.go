package handlers

import (
	_ "embed"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/y-hirakaw/webcalc/internal/calculator"
	"github.com/y-hirakaw/webcalc/internal/i18n"
	"github.com/y-hirakaw/webcalc/internal/web"
	"github.com/y-hirakaw/webcalc/internal/web/middleware"
)

//go:embed static/calculator.js
var calculatorScript []byte

// scriptETag は calculator.js の内容から計算したETag
var scriptETag = `"` + strconv.FormatUint(xxhash.Sum64(calculatorScript), 16) + `"`

// pageData は電卓ページのテンプレートに渡すデータ
type pageData struct {
	Lang           string
	Title          string
	SessionID      string
	Display        calculator.Display
	ClearLabel     string
	DeleteLabel    string
	KeyboardHint   string
	ConnectionLost string
}

var pageTemplate = template.Must(template.New("calculator").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        *, *::before, *::after { box-sizing: border-box; font-family: Gotham Rounded, sans-serif; font-weight: normal; }
        body { margin: 0; padding: 0; background: linear-gradient(to right, #00aaff, #00ff6c); }
        .calculator-grid { display: grid; justify-content: center; align-content: center; min-height: 100vh;
            grid-template-columns: repeat(4, 100px); grid-template-rows: minmax(120px, auto) repeat(5, 100px); }
        .calculator-grid > button { cursor: pointer; font-size: 2rem; border: 1px solid white; outline: none;
            background-color: rgba(255, 255, 255, .75); }
        .calculator-grid > button:hover { background-color: rgba(255, 255, 255, .9); }
        .span-two { grid-column: span 2; }
        .output { grid-column: 1 / -1; background-color: rgba(0, 0, 0, .75); display: flex; align-items: flex-end;
            justify-content: space-around; flex-direction: column; padding: 10px; word-wrap: break-word; word-break: break-all; }
        .output .previous-operand { color: rgba(255, 255, 255, .75); font-size: 1.5rem; min-height: 1.5rem; }
        .output .current-operand { color: white; font-size: 2.5rem; min-height: 2.5rem; }
        .hint, .status { grid-column: 1 / -1; text-align: center; color: white; padding: 8px; }
    </style>
</head>
<body>
    <div class="calculator-grid" data-session="{{.SessionID}}">
        <div class="output">
            <div class="previous-operand" data-previous-operand>{{.Display.Previous}}</div>
            <div class="current-operand" data-current-operand>{{.Display.Current}}</div>
        </div>
        <button class="span-two" data-all-clear>{{.ClearLabel}}</button>
        <button data-delete>{{.DeleteLabel}}</button>
        <button data-operation>÷</button>
        <button data-number>1</button>
        <button data-number>2</button>
        <button data-number>3</button>
        <button data-operation>*</button>
        <button data-number>4</button>
        <button data-number>5</button>
        <button data-number>6</button>
        <button data-operation>+</button>
        <button data-number>7</button>
        <button data-number>8</button>
        <button data-number>9</button>
        <button data-operation>-</button>
        <button data-number>.</button>
        <button data-number>0</button>
        <button class="span-two" data-equals>=</button>
        <div class="hint">{{.KeyboardHint}}</div>
        <div class="status" data-status hidden>{{.ConnectionLost}}</div>
    </div>
    <script src="/static/calculator.js"></script>
</body>
</html>
`))

// PageHandler は電卓ページと静的スクリプトを処理する
type PageHandler struct {
	server *web.Server
}

// NewPageHandler は新しいページハンドラーを作成する
func NewPageHandler(server *web.Server) *PageHandler {
	return &PageHandler{
		server: server,
	}
}

// HandleIndex は新しいセッションを作成して電卓ページを返す
func (h *PageHandler) HandleIndex() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := middleware.GetLocaleFromContext(r.Context())
		s := h.server.Sessions().Create(r.URL.Query().Get("initialValue"))

		data := pageData{
			Lang:           string(locale),
			Title:          i18n.TL(locale, "page_title"),
			SessionID:      s.ID,
			Display:        s.Display(),
			ClearLabel:     i18n.TL(locale, "button_clear"),
			DeleteLabel:    i18n.TL(locale, "button_delete"),
			KeyboardHint:   i18n.TL(locale, "keyboard_hint"),
			ConnectionLost: i18n.TL(locale, "connection_lost"),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := pageTemplate.Execute(w, data); err != nil {
			log.Printf("Failed to render page: %v", err)
		}
	})
}

// HandleScript はページのスクリプトをETag付きで返す
func (h *PageHandler) HandleScript() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", scriptETag)
		w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")

		if r.Header.Get("If-None-Match") == scriptETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, _ = w.Write(calculatorScript)
	})
}
