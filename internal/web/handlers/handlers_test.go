package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/y-hirakaw/webcalc/internal/calculator"
	"github.com/y-hirakaw/webcalc/internal/config"
	"github.com/y-hirakaw/webcalc/internal/session"
	"github.com/y-hirakaw/webcalc/internal/web"
)

var sessionAttr = regexp.MustCompile(`data-session="([^"]+)"`)

func newTestServer(t *testing.T, modify func(cfg *config.Config)) (*httptest.Server, *web.Server) {
	t.Helper()
	cfg := config.Default()
	if modify != nil {
		modify(cfg)
	}
	server := web.NewServer(cfg)
	ts := httptest.NewServer(NewRouter(server))
	t.Cleanup(ts.Close)
	return ts, server
}

func doJSON(t *testing.T, method, url string, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func createSession(t *testing.T, ts *httptest.Server, initialValue string) sessionResponse {
	t.Helper()
	body, err := json.Marshal(createRequest{InitialValue: initialValue})
	require.NoError(t, err)

	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", string(body), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created sessionResponse
	require.NoError(t, json.Unmarshal(data, &created))
	return created
}

func TestHandleIndex(t *testing.T) {
	ts, server := newTestServer(t, nil)

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/?initialValue=1234.5&lang=en", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	page := string(data)
	assert.Contains(t, page, `<html lang="en">`)
	assert.Contains(t, page, "<title>Calculator</title>")
	assert.Contains(t, page, `data-current-operand>1,234.5</div>`)
	assert.Contains(t, page, "data-all-clear")
	assert.Contains(t, page, "data-equals")
	assert.Equal(t, 11, strings.Count(page, "<button data-number>"))
	assert.Contains(t, page, `<script src="/static/calculator.js"></script>`)

	m := sessionAttr.FindStringSubmatch(page)
	require.Len(t, m, 2)
	s, err := server.Sessions().Get(m[1])
	require.NoError(t, err)
	assert.Equal(t, "1234.5", s.Snapshot().State.CurrentOperand)
}

func TestHandleIndex_InvalidInitialValue(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	_, data := doJSON(t, http.MethodGet, ts.URL+"/?initialValue=12abc", "", nil)
	assert.Contains(t, string(data), `data-current-operand>0</div>`)
}

func TestHandleIndex_UnknownPath(t *testing.T) {
	ts, server := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, server.Sessions().Len())
}

func TestHandleScript_ETag(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	identity := map[string]string{"Accept-Encoding": "identity"}
	resp, data := doJSON(t, http.MethodGet, ts.URL+"/static/calculator.js", "", identity)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, scriptETag, etag)
	assert.Contains(t, string(data), "data-session")

	resp, data = doJSON(t, http.MethodGet, ts.URL+"/static/calculator.js", "", map[string]string{
		"Accept-Encoding": "identity",
		"If-None-Match":   etag,
	})
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Empty(t, data)
}

func TestHandleCreateSession(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	t.Run("初期値あり", func(t *testing.T) {
		created := createSession(t, ts, "42")
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, calculator.Display{Current: "42", Previous: ""}, created.Display)
	})

	t.Run("ボディなし", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", "", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created sessionResponse
		require.NoError(t, json.Unmarshal(data, &created))
		assert.Equal(t, calculator.Display{Current: "0"}, created.Display)
	})

	t.Run("不正なJSON", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sessions", `{"initial_value":`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHandleEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
		want calculator.Display
	}{
		{name: "キー列", body: `{"keys":"2+3*4="}`, want: calculator.Display{Current: "20"}},
		{name: "ゼロ除算", body: `{"keys":"6/0="}`, want: calculator.Display{Current: calculator.ErrorText}},
		{name: "キー入力", body: `{"kind":"key","key":"7"}`, want: calculator.Display{Current: "7"}},
		{name: "除算キー", body: `{"kind":"key","key":"/"}`, want: calculator.Display{Previous: "0 ÷"}},
		{name: "ボタン入力", body: `{"kind":"button","action":"number","label":"9"}`, want: calculator.Display{Current: "9"}},
		{name: "未知のキー", body: `{"kind":"key","key":"Shift"}`, want: calculator.Display{Current: "0"}},
		{name: "未知の種類", body: `{"kind":"mouse"}`, want: calculator.Display{Current: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, nil)
			created := createSession(t, ts, "")

			resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+created.ID+"/events", tt.body, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var got sessionResponse
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, tt.want, got.Display)
		})
	}
}

func TestHandleEvents_Errors(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createSession(t, ts, "")

	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+created.ID+"/events", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), `"status":400`)

	resp, data = doJSON(t, http.MethodPost, ts.URL+"/api/sessions/unknown/events", `{"keys":"1"}`,
		map[string]string{"X-Language": "en"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "Session not found: unknown", body.Error)
	assert.Equal(t, http.StatusNotFound, body.Status)
}

func TestHandleGetSession(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createSession(t, ts, "")

	doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+created.ID+"/events", `{"keys":"12+"}`, nil)

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot session.Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, created.ID, snapshot.ID)
	assert.Equal(t, calculator.Display{Current: "", Previous: "12 +"}, snapshot.Display)
	assert.Equal(t, "12", snapshot.State.PreviousOperand)
	assert.Equal(t, calculator.OpAdd, snapshot.State.Operation)
	assert.Equal(t, 3, snapshot.Events)
}

func TestHandleDeleteSession(t *testing.T) {
	ts, server := newTestServer(t, nil)
	created := createSession(t, ts, "")
	require.Equal(t, 1, server.Sessions().Len())

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, server.Sessions().Len())

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	createSession(t, ts, "")
	createSession(t, ts, "")

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["sessions"])
	assert.Equal(t, web.Version, body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRouter_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	ts, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.AuthUser = "calc"
		cfg.AuthPasswordHash = string(hash)
	})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.SetBasicAuth("calc", "pw")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}

func dialSession(t *testing.T, ts *httptest.Server, id string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + id
	return websocket.DefaultDialer.Dial(url, nil)
}

func readUpdate(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendMessage(t *testing.T, conn *websocket.Conn, msg wsMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestHandleWebSocket(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createSession(t, ts, "5")

	conn, _, err := dialSession(t, ts, created.ID)
	require.NoError(t, err)
	defer conn.Close()

	initial := readUpdate(t, conn)
	assert.Equal(t, "display", initial["type"])
	assert.Equal(t, float64(0), initial["seq"])
	assert.Equal(t, map[string]interface{}{"current": "5", "previous": ""}, initial["display"])

	sendMessage(t, conn, wsMessage{Type: "key", Key: "*"})
	update := readUpdate(t, conn)
	assert.Equal(t, float64(1), update["seq"])
	assert.Equal(t, map[string]interface{}{"current": "", "previous": "5 *"}, update["display"])

	sendMessage(t, conn, wsMessage{Type: "button", Action: "number", Label: "3"})
	readUpdate(t, conn)
	sendMessage(t, conn, wsMessage{Type: "key", Key: "Enter"})
	update = readUpdate(t, conn)
	assert.Equal(t, float64(3), update["seq"])
	assert.Equal(t, map[string]interface{}{"current": "15", "previous": ""}, update["display"])

	sendMessage(t, conn, wsMessage{Type: "ping"})
	pong := readUpdate(t, conn)
	assert.Equal(t, "pong", pong["type"])
}

func TestHandleWebSocket_ReceivesHTTPUpdates(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	created := createSession(t, ts, "")

	conn, _, err := dialSession(t, ts, created.ID)
	require.NoError(t, err)
	defer conn.Close()
	readUpdate(t, conn)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+created.ID+"/events", `{"kind":"key","key":"8"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	update := readUpdate(t, conn)
	assert.Equal(t, created.ID, update["session_id"])
	assert.Equal(t, map[string]interface{}{"current": "8", "previous": ""}, update["display"])
}

func TestHandleWebSocket_UnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	_, resp, err := dialSession(t, ts, "missing")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventRequest_Events(t *testing.T) {
	req := eventRequest{Kind: "key", Key: "1", Keys: "2+"}
	assert.Len(t, req.events(), 2, "keys takes precedence over kind")

	assert.Empty(t, eventRequest{Kind: "button", Action: "number", Label: "x"}.events())

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(eventRequest{Kind: "key", Key: "1"}))
	assert.NotContains(t, buf.String(), "keys")
}
