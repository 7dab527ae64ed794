package mcpserver

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/y-hirakaw/webcalc/internal/calculator"
	"github.com/y-hirakaw/webcalc/internal/keymap"
	"github.com/y-hirakaw/webcalc/internal/session"
)

// Tool names
const (
	ToolPressKeys = "calculator.press_keys"
	ToolDisplay   = "calculator.display"
	ToolReset     = "calculator.reset"
)

// DefaultSession は session 引数を省略したときの電卓名
const DefaultSession = "default"

// Server は電卓をMCPツールとして公開するサーバー
//
// MCPクライアントが指定する名前ごとに1つの電卓セッションを持つ。
type Server struct {
	mcpServer *server.MCPServer
	sessions  *session.Manager

	mu    sync.Mutex
	names map[string]string
	debug bool
}

// toolResult はツールが返す表示内容
type toolResult struct {
	Session string             `json:"session"`
	Display calculator.Display `json:"display"`
	Error   bool               `json:"error"`
}

// New は新しいMCPサーバーを作成し、ツールを登録する
func New(name, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version),
		sessions:  session.NewManager(session.WithTTL(0)),
		names:     make(map[string]string),
	}
	s.registerTools()
	return s
}

// Serve は標準入出力でMCPサーバーを実行する
func (s *Server) Serve() error {
	log.Printf("Starting calculator MCP server")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve MCP server: %w", err)
	}
	return nil
}

// SetDebug はツール呼び出しごとの状態ダンプを切り替える
func (s *Server) SetDebug(debug bool) {
	s.debug = debug
}

// Sessions はセッションマネージャーを返す
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolPressKeys,
		mcp.WithDescription("Press a sequence of calculator keys. Digits and . enter numbers, "+
			"+ - * / (or ÷) choose an operation, = computes, < deletes one character and C clears."),
		mcp.WithString("keys", mcp.Required(), mcp.Description("Key sequence, for example 12+3*4=")),
		mcp.WithString("session", mcp.Description("Calculator name (default: "+DefaultSession+")")),
	), s.HandlePressKeys)

	s.mcpServer.AddTool(mcp.NewTool(ToolDisplay,
		mcp.WithDescription("Show the current calculator display"),
		mcp.WithString("session", mcp.Description("Calculator name (default: "+DefaultSession+")")),
	), s.HandleDisplay)

	s.mcpServer.AddTool(mcp.NewTool(ToolReset,
		mcp.WithDescription("Clear the calculator"),
		mcp.WithString("session", mcp.Description("Calculator name (default: "+DefaultSession+")")),
	), s.HandleReset)
}

// session は名前に対応するセッションを返す（存在しなければ作成する）
func (s *Server) session(name string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.names[name]; ok {
		if sess, err := s.sessions.Get(id); err == nil {
			return sess
		}
	}
	sess := s.sessions.Create("")
	s.names[name] = sess.ID
	return sess
}

// HandlePressKeys はキー列を電卓に適用する
func (s *Server) HandlePressKeys(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys := mcp.ParseString(req, "keys", "")
	if keys == "" {
		return mcp.NewToolResultError("keys parameter is required"), nil
	}

	name := mcp.ParseString(req, "session", DefaultSession)
	sess := s.session(name)

	display := sess.Display()
	for _, ev := range keymap.ParseSequence(keys) {
		d, err := s.sessions.Dispatch(sess.ID, ev)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to press keys: %v", err)), nil
		}
		display = d
	}
	return s.result(name, sess, display)
}

// HandleDisplay は現在の表示を返す
func (s *Server) HandleDisplay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(req, "session", DefaultSession)
	sess := s.session(name)
	return s.result(name, sess, sess.Display())
}

// HandleReset は電卓を初期状態に戻す
func (s *Server) HandleReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(req, "session", DefaultSession)
	sess := s.session(name)

	display, err := s.sessions.Dispatch(sess.ID, keymap.Event{Kind: keymap.KindClear})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to reset calculator: %v", err)), nil
	}
	return s.result(name, sess, display)
}

func (s *Server) result(name string, sess *session.Session, display calculator.Display) (*mcp.CallToolResult, error) {
	snapshot := sess.Snapshot()
	if s.debug {
		log.Printf("🐛 %s", spew.Sdump(snapshot))
	}

	data, err := json.Marshal(toolResult{
		Session: name,
		Display: display,
		Error:   snapshot.State.Error,
	})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
