package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/i18n"
)

const (
	// Version はアプリケーションのバージョン
	Version = "0.1.0"
	// AppName はアプリケーション名
	AppName = "webcalc"
)

// App はCLIアプリケーションを表す
type App struct {
	out    io.Writer
	errOut io.Writer
	debug  bool
}

// NewApp は新しいCLIアプリケーションを作成する
func NewApp() *App {
	// i18nシステムを初期化
	i18n.Initialize()

	return &App{
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

// SetOutput は出力先を差し替える
func (a *App) SetOutput(out, errOut io.Writer) {
	a.out = out
	a.errOut = errOut
}

// RootCommand はサブコマンドを登録したルートコマンドを作成する
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           AppName,
		Short:         "Four-function calculator for the browser, terminal and MCP clients",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Dump calculator state after each command")

	root.AddCommand(
		NewKeysHandler(a).Command(),
		NewWebHandler(a).Command(),
		NewMCPHandler(a).Command(),
		NewConfigHandler(a).Command(),
	)
	return root
}

// Run はCLIアプリケーションを実行し、終了コードを返す
func (a *App) Run(args []string) int {
	root := a.RootCommand()
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(a.errOut, errors.FormatError(err))
		return 1
	}
	return 0
}
