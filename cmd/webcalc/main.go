package main

import (
	"os"

	"github.com/y-hirakaw/webcalc/internal/cli"
)

// main はアプリケーションのエントリーポイント
func main() {
	app := cli.NewApp()
	exitCode := app.Run(os.Args[1:])
	os.Exit(exitCode)
}
