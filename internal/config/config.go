package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// MaxDecimalScale is the largest scale (and the fixed precision) of the
// decimal columns the generated SQL declares.
const MaxDecimalScale = 38

// ErrInvalidScale is returned when a configured decimal scale is outside 0..38.
var ErrInvalidScale = errors.New("invalid decimal scale")

// Token stream capability values.
const (
	TokenStreamAuto = "auto"
	TokenStreamOn   = "on"
	TokenStreamOff  = "off"
)

// Enumeration policies.
const (
	EnumeratePerExecution = "per-execution"
	EnumerateOnce         = "once"
)

// Config is the configuration surface consumed at mapping and SQL
// generation time. Field name keys are matched case-insensitively.
type Config struct {
	DefaultDecimalScale  int             `mapstructure:"default_decimal_scale"`
	DefaultTextIsUnicode bool            `mapstructure:"default_text_is_unicode"`
	FieldDecimalScale    map[string]int  `mapstructure:"field_decimal_scale"`
	FieldIsUnicode       map[string]bool `mapstructure:"field_is_unicode"`
	UseRowBoundHint      bool            `mapstructure:"use_row_bound_hint"`

	// TokenStream is the capability input: "on" when the engine supports
	// the token-stream payload, "off" when it does not, "auto" when unknown.
	TokenStream string `mapstructure:"token_stream"`
	Dialect     string `mapstructure:"dialect"`
	Enumeration string `mapstructure:"enumeration"`

	// StatementCacheSize bounds the SQL text cache. 0 means unbounded.
	StatementCacheSize int `mapstructure:"statement_cache_size"`

	Log LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DefaultDecimalScale:  6,
		DefaultTextIsUnicode: true,
		TokenStream:          TokenStreamAuto,
		Dialect:              "sqlserver",
		Enumeration:          EnumeratePerExecution,
		Log: LogConfig{
			Format: "text",
			Level:  "none",
		},
	}
}

// Validate checks every scale and enumerated option. It never inspects data.
func (c Config) Validate() error {
	if err := checkScale("default", c.DefaultDecimalScale); err != nil {
		return err
	}
	for field, scale := range c.FieldDecimalScale {
		if err := checkScale(field, scale); err != nil {
			return err
		}
	}

	switch c.TokenStream {
	case TokenStreamAuto, TokenStreamOn, TokenStreamOff, "":
	default:
		return fmt.Errorf("invalid token_stream %q: must be one of auto, on, off", c.TokenStream)
	}

	switch c.Enumeration {
	case EnumeratePerExecution, EnumerateOnce, "":
	default:
		return fmt.Errorf("invalid enumeration %q: must be one of %s, %s", c.Enumeration, EnumeratePerExecution, EnumerateOnce)
	}

	if c.StatementCacheSize < 0 {
		return fmt.Errorf("invalid statement_cache_size %d: must not be negative", c.StatementCacheSize)
	}
	return nil
}

func checkScale(field string, scale int) error {
	if scale < 0 || scale > MaxDecimalScale {
		return fmt.Errorf("%w: %d for %s (must be 0..%d)", ErrInvalidScale, scale, field, MaxDecimalScale)
	}
	return nil
}

// ScaleFor returns the decimal scale for a source field. An empty field
// name (the simple path) always gets the default.
func (c Config) ScaleFor(field string) int {
	if scale, ok := lookup(c.FieldDecimalScale, field); ok {
		return scale
	}
	return c.DefaultDecimalScale
}

// UnicodeFor reports whether text for a source field is unicode.
func (c Config) UnicodeFor(field string) bool {
	if unicode, ok := lookup(c.FieldIsUnicode, field); ok {
		return unicode
	}
	return c.DefaultTextIsUnicode
}

func lookup[V any](m map[string]V, field string) (V, bool) {
	var zero V
	if field == "" || len(m) == 0 {
		return zero, false
	}
	if v, ok := m[field]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, field) {
			return v, true
		}
	}
	return zero, false
}

// Load reads configuration from v on top of Default and validates it.
func Load(v *viper.Viper) (Config, error) {
	def := Default()
	v.SetDefault("default_decimal_scale", def.DefaultDecimalScale)
	v.SetDefault("default_text_is_unicode", def.DefaultTextIsUnicode)
	v.SetDefault("token_stream", def.TokenStream)
	v.SetDefault("dialect", def.Dialect)
	v.SetDefault("enumeration", def.Enumeration)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.level", def.Log.Level)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
