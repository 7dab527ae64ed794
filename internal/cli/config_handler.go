package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/y-hirakaw/webcalc/internal/config"
	"github.com/y-hirakaw/webcalc/internal/errors"
)

// DefaultConfigFile は config init が書き出すファイル名
const DefaultConfigFile = "webcalc.json"

// ConfigHandler は設定ファイル関連のコマンドを処理する
type ConfigHandler struct {
	app        *App
	fs         afero.Fs
	getenv     func(string) string
	outPath    string
	configPath string
	force      bool
}

// NewConfigHandler は新しいConfigHandlerを作成する
func NewConfigHandler(app *App) *ConfigHandler {
	return &ConfigHandler{
		app:    app,
		fs:     afero.NewOsFs(),
		getenv: os.Getenv,
	}
}

// Command はcobraコマンドを返す
func (h *ConfigHandler) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the server configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values (.json or .toml)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return h.HandleInit()
		},
	}
	initCmd.Flags().StringVarP(&h.outPath, "path", "o", DefaultConfigFile, "Output path; the extension selects JSON or TOML")
	initCmd.Flags().BoolVarP(&h.force, "force", "f", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return h.HandleShow()
		},
	}
	showCmd.Flags().StringVarP(&h.configPath, "config", "c", "", "Config file (.json or .toml)")

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// HandleInit はデフォルト設定をファイルに書き出す
func (h *ConfigHandler) HandleInit() error {
	manager := config.NewManager(h.fs, h.outPath)

	exists, err := manager.Exists()
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "config_read_failed")
	}
	if exists && !h.force {
		return errors.NewError(errors.ErrorTypeConfig, "config_exists", manager.GetConfigPath())
	}

	if err := manager.Save(config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(h.app.out, "✅ Wrote %s\n", manager.GetConfigPath())
	return nil
}

// HandleShow は実際に適用される設定をTOML形式で表示する
func (h *ConfigHandler) HandleShow() error {
	manager := config.NewManager(h.fs, h.configPath)
	manager.SetGetenv(h.getenv)

	cfg, err := manager.Load()
	if err != nil {
		return err
	}

	data, err := config.Encode(cfg, "effective.toml")
	if err != nil {
		return err
	}
	_, err = h.app.out.Write(data)
	return err
}
