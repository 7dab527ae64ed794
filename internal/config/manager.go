package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"github.com/y-hirakaw/webcalc/internal/errors"
)

// Manager は設定ファイルの読み書きを行う
type Manager struct {
	fs         afero.Fs
	configPath string
	getenv     func(string) string
}

// NewManager は新しい Manager を作成する
// configPath が空の場合はファイルを読まず、デフォルト値と環境変数のみを使う
func NewManager(fs afero.Fs, configPath string) *Manager {
	return &Manager{
		fs:         fs,
		configPath: configPath,
		getenv:     os.Getenv,
	}
}

// SetGetenv は環境変数の取得関数を差し替える
func (m *Manager) SetGetenv(getenv func(string) string) {
	m.getenv = getenv
}

// Load はデフォルト値 → 設定ファイル → 環境変数の順に適用した設定を返す
func (m *Manager) Load() (*Config, error) {
	return m.LoadWithOverrides(Overrides{})
}

// LoadWithOverrides は Load の結果にフラグの値を重ねてから検証する
func (m *Manager) LoadWithOverrides(overrides Overrides) (*Config, error) {
	cfg := Default()

	if m.configPath != "" {
		if err := m.loadFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(m.getenv); err != nil {
		return nil, err
	}
	overrides.Apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile は設定ファイルを拡張子に応じて読み込む
func (m *Manager) loadFile(cfg *Config) error {
	exists, err := afero.Exists(m.fs, m.configPath)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "config_read_failed")
	}
	if !exists {
		return errors.ConfigNotFound(m.configPath)
	}

	data, err := afero.ReadFile(m.fs, m.configPath)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "config_read_failed")
	}

	if isTOML(m.configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return errors.WrapError(err, errors.ErrorTypeConfig, "config_parse_failed")
		}
		return nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "config_parse_failed")
	}
	return nil
}

// Exists は設定ファイルが存在するかを返す
func (m *Manager) Exists() (bool, error) {
	return afero.Exists(m.fs, m.configPath)
}

// Save は設定を設定ファイルに保存する
func (m *Manager) Save(cfg *Config) error {
	if err := m.fs.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "config_write_failed")
	}

	data, err := Encode(cfg, m.configPath)
	if err != nil {
		return err
	}

	if err := afero.WriteFile(m.fs, m.configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfig, "config_write_failed")
	}
	return nil
}

// Encode は path の拡張子に応じてJSONまたはTOMLで設定をエンコードする
func Encode(cfg *Config, path string) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeConfig, "config_write_failed")
		}
		return buf.Bytes(), nil
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfig, "config_write_failed")
	}
	return append(data, '\n'), nil
}

// GetConfigPath は設定ファイルのパスを取得する
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
