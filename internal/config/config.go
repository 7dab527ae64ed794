package config

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/y-hirakaw/webcalc/internal/errors"
	"github.com/y-hirakaw/webcalc/internal/i18n"
	"github.com/y-hirakaw/webcalc/internal/validation"
)

const (
	// DefaultPort はデフォルトのサーバーポート
	DefaultPort = 8080
	// DefaultLang はデフォルトの表示言語
	DefaultLang = "ja"
	// DefaultSessionTTL は無操作セッションの有効期限
	DefaultSessionTTL = 30 * time.Minute
	// DefaultSweepInterval は期限切れセッションの掃除間隔
	DefaultSweepInterval = time.Minute
)

// Duration は "30m" のような文字列で読み書きできる time.Duration
type Duration time.Duration

// MarshalText は encoding.TextMarshaler を実装する
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText は encoding.TextUnmarshaler を実装する
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config はWebサーバーの設定
type Config struct {
	Port             int      `json:"port" toml:"port"`
	Lang             string   `json:"lang" toml:"lang"`
	Debug            bool     `json:"debug" toml:"debug"`
	Gzip             bool     `json:"gzip" toml:"gzip"`
	SessionTTL       Duration `json:"session_ttl" toml:"session_ttl"`
	SweepInterval    Duration `json:"sweep_interval" toml:"sweep_interval"`
	RateLimit        int      `json:"rate_limit" toml:"rate_limit"`
	TrustProxy       bool     `json:"trust_proxy" toml:"trust_proxy"`
	MessagesFile     string   `json:"messages_file,omitempty" toml:"messages_file,omitempty"`
	AuthUser         string   `json:"auth_user,omitempty" toml:"auth_user,omitempty"`
	AuthPasswordHash string   `json:"auth_password_hash,omitempty" toml:"auth_password_hash,omitempty"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Port:          DefaultPort,
		Lang:          DefaultLang,
		Gzip:          true,
		SessionTTL:    Duration(DefaultSessionTTL),
		SweepInterval: Duration(DefaultSweepInterval),
	}
}

// Addr は待ち受けアドレスを返す
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Locale は表示言語をロケールとして返す
func (c *Config) Locale() i18n.Locale {
	if locale, ok := i18n.ParseLocale(c.Lang); ok {
		return locale
	}
	return i18n.LocaleJA
}

// AuthEnabled は基本認証が設定されているかを返す
func (c *Config) AuthEnabled() bool {
	return c.AuthUser != "" && c.AuthPasswordHash != ""
}

// Validate は設定値を検証する
func (c *Config) Validate() error {
	checks := []error{
		validation.ValidatePort(c.Port),
		validation.ValidateLanguage(c.Lang),
		validation.ValidateDuration("session_ttl", time.Duration(c.SessionTTL), true),
		validation.ValidateDuration("sweep_interval", time.Duration(c.SweepInterval), false),
		validation.ValidateRateLimit(c.RateLimit),
		validation.ValidateAuth(c.AuthUser, c.AuthPasswordHash),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// Overrides はコマンドラインフラグによる上書き値（ゼロ値の項目は上書きしない）
type Overrides struct {
	Port         int
	Lang         string
	Debug        bool
	MessagesFile string
}

// Apply は上書き値を設定に反映する
func (o Overrides) Apply(c *Config) {
	if o.Port != 0 {
		c.Port = o.Port
	}
	if o.Lang != "" {
		c.Lang = o.Lang
	}
	if o.Debug {
		c.Debug = true
	}
	if o.MessagesFile != "" {
		c.MessagesFile = o.MessagesFile
	}
}

// envOverrides は環境変数名と適用関数の対応
var envOverrides = map[string]func(c *Config, value string) error{
	"WEBCALC_PORT": func(c *Config, value string) error {
		port, err := cast.ToIntE(value)
		if err != nil {
			return err
		}
		c.Port = port
		return nil
	},
	"WEBCALC_LANG": func(c *Config, value string) error {
		c.Lang = value
		return nil
	},
	"WEBCALC_DEBUG": func(c *Config, value string) error {
		debug, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		c.Debug = debug
		return nil
	},
	"WEBCALC_GZIP": func(c *Config, value string) error {
		gzip, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		c.Gzip = gzip
		return nil
	},
	"WEBCALC_SESSION_TTL": func(c *Config, value string) error {
		ttl, err := cast.ToDurationE(value)
		if err != nil {
			return err
		}
		c.SessionTTL = Duration(ttl)
		return nil
	},
	"WEBCALC_SWEEP_INTERVAL": func(c *Config, value string) error {
		interval, err := cast.ToDurationE(value)
		if err != nil {
			return err
		}
		c.SweepInterval = Duration(interval)
		return nil
	},
	"WEBCALC_RATE_LIMIT": func(c *Config, value string) error {
		limit, err := cast.ToIntE(value)
		if err != nil {
			return err
		}
		c.RateLimit = limit
		return nil
	},
	"WEBCALC_TRUST_PROXY": func(c *Config, value string) error {
		trust, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		c.TrustProxy = trust
		return nil
	},
	"WEBCALC_MESSAGES_FILE": func(c *Config, value string) error {
		c.MessagesFile = value
		return nil
	},
	"WEBCALC_AUTH_USER": func(c *Config, value string) error {
		c.AuthUser = value
		return nil
	},
	"WEBCALC_AUTH_PASSWORD_HASH": func(c *Config, value string) error {
		c.AuthPasswordHash = value
		return nil
	},
}

// ApplyEnv は環境変数による上書きを適用する
func (c *Config) ApplyEnv(getenv func(string) string) error {
	for name, apply := range envOverrides {
		value := getenv(name)
		if value == "" {
			continue
		}
		if err := apply(c, value); err != nil {
			return errors.ConfigInvalid(name, err.Error())
		}
	}
	return nil
}
