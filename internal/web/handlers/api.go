package handlers

import (
	stderrors "errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/y-hirakaw/webcalc/internal/calculator"
	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/i18n"
	"github.com/y-hirakaw/webcalc/internal/keymap"
	"github.com/y-hirakaw/webcalc/internal/session"
	"github.com/y-hirakaw/webcalc/internal/web"
	"github.com/y-hirakaw/webcalc/internal/web/middleware"
)

// writeWait はWebSocketへの書き込みタイムアウト
const writeWait = 10 * time.Second

// APIHandler はセッションAPIとWebSocketを処理する
type APIHandler struct {
	server   *web.Server
	upgrader websocket.Upgrader
}

// NewAPIHandler は新しいAPIハンドラーを作成する
func NewAPIHandler(server *web.Server) *APIHandler {
	return &APIHandler{
		server: server,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 開発環境では全てのオリジンを許可
				return true
			},
		},
	}
}

// createRequest はセッション作成リクエスト
type createRequest struct {
	InitialValue string `json:"initial_value"`
}

// eventRequest は入力イベントのリクエスト
//
// keys が指定された場合はキー列として、それ以外は kind に応じて
// キーボード入力かボタン入力として解釈する。
type eventRequest struct {
	Kind   string `json:"kind"`
	Key    string `json:"key,omitempty"`
	Action string `json:"action,omitempty"`
	Label  string `json:"label,omitempty"`
	Keys   string `json:"keys,omitempty"`
}

// events はリクエストを電卓イベントに変換する（解釈できない入力は空）
func (req eventRequest) events() []keymap.Event {
	if req.Keys != "" {
		return keymap.ParseSequence(req.Keys)
	}

	var (
		ev keymap.Event
		ok bool
	)
	switch req.Kind {
	case "key":
		ev, ok = keymap.FromKey(req.Key)
	case "button":
		ev, ok = keymap.FromButton(req.Action, req.Label)
	}
	if !ok {
		return nil
	}
	return []keymap.Event{ev}
}

// sessionResponse はセッションの表示を返すレスポンス
type sessionResponse struct {
	ID      string             `json:"id"`
	Display calculator.Display `json:"display"`
}

// HandleCreateSession は新しい電卓セッションを作成する
func (h *APIHandler) HandleCreateSession() http.Handler {
	return middleware.JSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
			writeError(w, r, errors.InvalidRequest(err))
			return
		}

		s := h.server.Sessions().Create(req.InitialValue)
		log.Printf("🧮 Session created: %s", s.ID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(sessionResponse{ID: s.ID, Display: s.Display()})
	}))
}

// HandleGetSession はセッションの表示と状態を返す
func (h *APIHandler) HandleGetSession() http.Handler {
	return middleware.JSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.server.Sessions().Get(r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		_ = json.NewEncoder(w).Encode(s.Snapshot())
	}))
}

// HandleEvents はセッションに入力イベントを適用する
func (h *APIHandler) HandleEvents() http.Handler {
	return middleware.JSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s, err := h.server.Sessions().Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, errors.InvalidRequest(err))
			return
		}

		display := s.Display()
		for _, ev := range req.events() {
			display, err = h.server.Sessions().Dispatch(id, ev)
			if err != nil {
				writeError(w, r, err)
				return
			}
		}
		h.debugDump(s)

		_ = json.NewEncoder(w).Encode(sessionResponse{ID: id, Display: display})
	}))
}

// HandleDeleteSession はセッションを破棄する
func (h *APIHandler) HandleDeleteSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !h.server.Sessions().Delete(id) {
			writeError(w, r, errors.SessionNotFound(id))
			return
		}
		log.Printf("🗑️  Session deleted: %s", id)
		w.WriteHeader(http.StatusNoContent)
	})
}

// HandleHealth はヘルスチェックエンドポイント
func (h *APIHandler) HandleHealth() http.Handler {
	return middleware.JSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if !h.server.IsHealthy() {
			status = "error"
			statusCode = http.StatusServiceUnavailable
		}

		response := map[string]interface{}{
			"status":    status,
			"sessions":  h.server.Sessions().Len(),
			"uptime":    h.server.Uptime().Round(time.Second).String(),
			"timestamp": time.Now(),
			"version":   web.Version,
		}

		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(response)
	}))
}

// wsMessage はクライアントから届くWebSocketメッセージ
type wsMessage struct {
	Type   string `json:"type"`
	Key    string `json:"key,omitempty"`
	Action string `json:"action,omitempty"`
	Label  string `json:"label,omitempty"`
}

// wsClient は書き込みを直列化したWebSocket接続
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// send は値をJSONとして送信する
func (c *wsClient) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// HandleWebSocket はセッションの入力と表示更新をWebSocketで中継する
func (h *APIHandler) HandleWebSocket() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions := h.server.Sessions()
		id := r.URL.Query().Get("session")
		s, err := sessions.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		// WebSocket接続にアップグレード
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		client := &wsClient{conn: conn}

		clientID := uuid.NewString()
		updates, err := sessions.Subscribe(id, clientID)
		if err != nil {
			return
		}
		defer sessions.Unsubscribe(id, clientID)

		// 現在の表示を送信
		snapshot := s.Snapshot()
		if err := client.send(&session.UpdateEvent{
			Type:      "display",
			SessionID: id,
			Seq:       snapshot.Events,
			Timestamp: time.Now(),
			Display:   snapshot.Display,
		}); err != nil {
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			h.handleWebSocketMessages(client, id)
		}()

		// 更新イベントを送信
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if err := client.send(update); err != nil {
					return
				}
			case <-done:
				return
			case <-r.Context().Done():
				return
			}
		}
	})
}

// handleWebSocketMessages はWebSocketメッセージを処理する
func (h *APIHandler) handleWebSocketMessages(client *wsClient, id string) {
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket closed unexpectedly: %v", err)
			}
			return
		}

		var message wsMessage
		if err := json.Unmarshal(data, &message); err != nil {
			continue
		}

		// メッセージタイプに応じて処理
		var (
			ev keymap.Event
			ok bool
		)
		switch message.Type {
		case "ping":
			_ = client.send(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now(),
			})
			continue
		case "key":
			ev, ok = keymap.FromKey(message.Key)
		case "button":
			ev, ok = keymap.FromButton(message.Action, message.Label)
		}
		if !ok {
			continue
		}

		// 更新後の表示は購読チャネル経由で届く
		if _, err := h.server.Sessions().Dispatch(id, ev); err != nil {
			return
		}
	}
}

// debugDump はデバッグモードのときセッションの状態を出力する
func (h *APIHandler) debugDump(s *session.Session) {
	if !h.server.GetConfig().Debug {
		return
	}
	log.Printf("🐛 %s", spew.Sdump(s.Snapshot()))
}

// writeError はエラーの種類に応じたステータスでJSONエラーを返す
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.GetLocaleFromContext(r.Context())

	var fe *errors.FriendlyError
	if !stderrors.As(err, &fe) {
		log.Printf("Error: %v", err)
		middleware.WriteJSONError(w, http.StatusInternalServerError, i18n.TL(locale, "internal_error"))
		return
	}

	status := http.StatusInternalServerError
	switch fe.Type {
	case errors.ErrorTypeSession:
		status = http.StatusNotFound
	case errors.ErrorTypeInput:
		status = http.StatusBadRequest
	}
	middleware.WriteJSONError(w, status, i18n.TL(locale, fe.Key, fe.Args...))
}
