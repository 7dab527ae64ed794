package config

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/i18n"
	"github.com/y-hirakaw/webcalc/internal/testutil"
)

func newTestManager(t *testing.T, path string, env map[string]string) (*Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	m := NewManager(fs, path)
	m.SetGetenv(testutil.Env(env))
	return m, fs
}

func TestLoad_Defaults(t *testing.T) {
	m, _ := newTestManager(t, "", nil)

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, i18n.LocaleJA, cfg.Locale())
	assert.False(t, cfg.AuthEnabled())
}

func TestLoad_JSONFile(t *testing.T) {
	m, fs := newTestManager(t, "/etc/webcalc/config.json", nil)
	require.NoError(t, afero.WriteFile(fs, "/etc/webcalc/config.json", []byte(`{
  "port": 9090,
  "lang": "en",
  "session_ttl": "5m",
  "gzip": false
}`), 0o644))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, i18n.LocaleEN, cfg.Locale())
	assert.Equal(t, Duration(5*time.Minute), cfg.SessionTTL)
	assert.False(t, cfg.Gzip)
	assert.Equal(t, Duration(DefaultSweepInterval), cfg.SweepInterval)
}

func TestLoad_TOMLFile(t *testing.T) {
	m, fs := newTestManager(t, "/srv/webcalc.toml", nil)
	require.NoError(t, afero.WriteFile(fs, "/srv/webcalc.toml", []byte(`
port = 3000
lang = "en"
debug = true
sweep_interval = "30s"
`), 0o644))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, Duration(30*time.Second), cfg.SweepInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	m, fs := newTestManager(t, "/config.json", map[string]string{
		"WEBCALC_PORT":        "7070",
		"WEBCALC_DEBUG":       "true",
		"WEBCALC_SESSION_TTL": "1h",
		"WEBCALC_RATE_LIMIT":  "120",
		"WEBCALC_TRUST_PROXY": "true",
	})
	require.NoError(t, afero.WriteFile(fs, "/config.json", []byte(`{"port": 9090}`), 0o644))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, Duration(time.Hour), cfg.SessionTTL)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.True(t, cfg.TrustProxy)
}

func TestLoadWithOverrides(t *testing.T) {
	t.Run("フラグがファイルの不正な値を置き換える", func(t *testing.T) {
		m, fs := newTestManager(t, "/webcalc.json", nil)
		require.NoError(t, afero.WriteFile(fs, "/webcalc.json", []byte(`{"port": 70000, "lang": "fr"}`), 0o644))

		_, err := m.Load()
		require.Error(t, err)

		cfg, err := m.LoadWithOverrides(Overrides{Port: 8181, Lang: "en"})
		require.NoError(t, err)
		assert.Equal(t, 8181, cfg.Port)
		assert.Equal(t, i18n.LocaleEN, cfg.Locale())
	})

	t.Run("フラグは環境変数より優先", func(t *testing.T) {
		m, _ := newTestManager(t, "", map[string]string{
			"WEBCALC_PORT":          "7070",
			"WEBCALC_MESSAGES_FILE": "/env/messages.json",
		})

		cfg, err := m.LoadWithOverrides(Overrides{Port: 9090, Debug: true})
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Port)
		assert.True(t, cfg.Debug)
		assert.Equal(t, "/env/messages.json", cfg.MessagesFile)

		cfg, err = m.LoadWithOverrides(Overrides{MessagesFile: "/flag/messages.json"})
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Port)
		assert.Equal(t, "/flag/messages.json", cfg.MessagesFile)
	})

	t.Run("フラグの値も検証される", func(t *testing.T) {
		m, _ := newTestManager(t, "", nil)
		_, err := m.LoadWithOverrides(Overrides{Lang: "fr"})
		assert.Error(t, err)
	})
}

func TestLoad_Errors(t *testing.T) {
	t.Run("ファイルなし", func(t *testing.T) {
		m, _ := newTestManager(t, "/missing.json", nil)
		_, err := m.Load()
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, errors.ConfigNotFound("")))
	})

	t.Run("JSONの解析失敗", func(t *testing.T) {
		m, fs := newTestManager(t, "/broken.json", nil)
		require.NoError(t, afero.WriteFile(fs, "/broken.json", []byte(`{port:`), 0o644))
		_, err := m.Load()
		require.Error(t, err)
		var fe *errors.FriendlyError
		require.True(t, stderrors.As(err, &fe))
		assert.Equal(t, "config_parse_failed", fe.Key)
	})

	t.Run("環境変数の型不正", func(t *testing.T) {
		m, _ := newTestManager(t, "", map[string]string{"WEBCALC_PORT": "http"})
		_, err := m.Load()
		assert.Error(t, err)
	})

	t.Run("検証エラー", func(t *testing.T) {
		m, _ := newTestManager(t, "", map[string]string{"WEBCALC_LANG": "fr"})
		_, err := m.Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "デフォルト", modify: func(c *Config) {}, wantErr: false},
		{name: "ポート範囲外", modify: func(c *Config) { c.Port = 70000 }, wantErr: true},
		{name: "ポート0", modify: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "負のTTL", modify: func(c *Config) { c.SessionTTL = Duration(-time.Second) }, wantErr: true},
		{name: "TTL0は無期限", modify: func(c *Config) { c.SessionTTL = 0 }, wantErr: false},
		{name: "掃除間隔0", modify: func(c *Config) { c.SweepInterval = 0 }, wantErr: true},
		{name: "負のレート制限", modify: func(c *Config) { c.RateLimit = -1 }, wantErr: true},
		{name: "ユーザーのみ", modify: func(c *Config) { c.AuthUser = "admin" }, wantErr: true},
		{name: "bcryptでないハッシュ", modify: func(c *Config) {
			c.AuthUser = "admin"
			c.AuthPasswordHash = "plain"
		}, wantErr: true},
		{name: "認証設定", modify: func(c *Config) {
			c.AuthUser = "admin"
			c.AuthPasswordHash = "$2a$10$abcdefghijklmnopqrstuu"
		}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, path := range []string{"/out/config.json", "/out/config.toml"} {
		t.Run(path, func(t *testing.T) {
			m, fs := newTestManager(t, path, nil)

			cfg := Default()
			cfg.Port = 8181
			cfg.Lang = "en"
			cfg.SessionTTL = Duration(90 * time.Second)
			require.NoError(t, m.Save(cfg))

			exists, err := afero.Exists(fs, path)
			require.NoError(t, err)
			assert.True(t, exists)
			managerExists, err := m.Exists()
			require.NoError(t, err)
			assert.True(t, managerExists)
			assert.Equal(t, path, m.GetConfigPath())

			loaded, err := m.Load()
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}
