package cli

import (
	"github.com/spf13/cobra"

	"github.com/y-hirakaw/webcalc/internal/mcpserver"
)

// MCPHandler はMCPサーバーコマンドを処理する
type MCPHandler struct {
	app *App
}

// NewMCPHandler は新しいMCPHandlerを作成する
func NewMCPHandler(app *App) *MCPHandler {
	return &MCPHandler{app: app}
}

// Command はcobraコマンドを返す
func (h *MCPHandler) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve calculator tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := mcpserver.New(AppName, Version)
			server.SetDebug(h.app.debug)
			return server.Serve()
		},
	}
}
