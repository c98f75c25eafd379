package config // package config loads application configuration from a file and WARP_ environment variables

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Prefix namespaces every environment variable read by the app.
const Prefix = "WARP_"

// ErrMissingRequired is wrapped by Load when a mandatory setting is absent.
var ErrMissingRequired = errors.New("missing required setting")

// Config holds all runtime configuration.  It is built once at startup by
// Load and passed down by value; nothing reads the environment later.
type Config struct {
	Env      string `yaml:"env"`       // deployment environment (development, production)
	Port     string `yaml:"port"`      // HTTP port to listen on
	LogLevel string `yaml:"log_level"` // debug | info | warn | error

	SecretKey string `yaml:"secret_key"` // signs session cookies; required
	Database  string `yaml:"database"`   // database URL (mysql://, postgres://, sqlite:); required

	SessionLifetime  int   `yaml:"session_lifetime"`   // days until re-login is forced
	WeeksInAdvance   int   `yaml:"weeks_in_advance"`   // weeks after the current one open for booking
	MaxContentLength int64 `yaml:"max_content_length"` // request body limit in bytes
	MaxMapSize       int64 `yaml:"max_map_size"`       // zone image upload limit in bytes
	MaxReportRows    int   `yaml:"max_report_rows"`    // cap for booking listings

	DatabaseInitRetries      int           `yaml:"database_init_retries"`
	DatabaseInitRetriesDelay time.Duration `yaml:"-"` // seconds or duration string in the file
	AutoMigrate              bool          `yaml:"auto_migrate"`

	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`

	AMQPURL      string `yaml:"amqp_url"`      // empty disables event publishing
	CookieSecure bool   `yaml:"cookie_secure"` // set Secure on the session cookie

	Redis     RedisConfig     `yaml:"-"`
	RateLimit RateLimitConfig `yaml:"-"`
	Cache     CacheConfig     `yaml:"-"`
}

// Defaults returns the configuration used before any file or environment
// override is applied.
func Defaults() Config {
	return Config{
		Env:                      "development",
		Port:                     "8000",
		LogLevel:                 "info",
		SessionLifetime:          1,
		WeeksInAdvance:           1,
		MaxContentLength:         5 * 1024 * 1024,
		MaxMapSize:               2 * 1024 * 1024,
		MaxReportRows:            5000,
		DatabaseInitRetries:      10,
		DatabaseInitRetriesDelay: 2 * time.Second,
		AutoMigrate:              true,
	}
}

// Load builds the Config from defaults, the optional YAML file named by
// WARP_CONFIG_FILE and WARP_* environment variables, in that order.  It
// returns an error when a value cannot be decoded into its field or when
// SECRET_KEY or DATABASE end up empty.
func Load() (Config, error) {
	cfg := Defaults()

	if path, ok := lookup("CONFIG_FILE"); ok {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	var missing []string
	if cfg.SecretKey == "" {
		missing = append(missing, Prefix+"SECRET_KEY")
	}
	if cfg.Database == "" {
		missing = append(missing, Prefix+"DATABASE")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	if cfg.DatabaseInitRetries < 1 {
		cfg.DatabaseInitRetries = 1
	}

	cfg.Redis = LoadRedisConfig()
	cfg.RateLimit = LoadRateLimitConfig()
	cfg.Cache = LoadCacheConfig()
	return cfg, nil
}

// fileConfig mirrors Config for YAML decoding; the delay accepts either a
// number of seconds or a Go duration string.
type fileConfig struct {
	Config                   `yaml:",inline"`
	DatabaseInitRetriesDelay yaml.Node `yaml:"database_init_retries_delay"`
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	fc := fileConfig{Config: *cfg}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.DatabaseInitRetriesDelay.Kind != 0 {
		d, err := parseDelay(fc.DatabaseInitRetriesDelay.Value)
		if err != nil {
			return fmt.Errorf("config file database_init_retries_delay: %w", err)
		}
		fc.Config.DatabaseInitRetriesDelay = d
	}
	*cfg = fc.Config
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"ENV":            &cfg.Env,
		"PORT":           &cfg.Port,
		"LOG_LEVEL":      &cfg.LogLevel,
		"SECRET_KEY":     &cfg.SecretKey,
		"DATABASE":       &cfg.Database,
		"ADMIN_USER":     &cfg.AdminUser,
		"ADMIN_PASSWORD": &cfg.AdminPassword,
		"AMQP_URL":       &cfg.AMQPURL,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SESSION_LIFETIME":      &cfg.SessionLifetime,
		"WEEKS_IN_ADVANCE":      &cfg.WeeksInAdvance,
		"MAX_REPORT_ROWS":       &cfg.MaxReportRows,
		"DATABASE_INIT_RETRIES": &cfg.DatabaseInitRetries,
	}
	for key, dst := range ints {
		if err := decodeEnv(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*int64{
		"MAX_CONTENT_LENGTH": &cfg.MaxContentLength,
		"MAX_MAP_SIZE":       &cfg.MaxMapSize,
	} {
		if err := decodeEnv(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*bool{
		"AUTO_MIGRATE":  &cfg.AutoMigrate,
		"COOKIE_SECURE": &cfg.CookieSecure,
	} {
		if err := decodeEnv(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("DATABASE_INIT_RETRIES_DELAY"); ok {
		d, err := parseDelay(v)
		if err != nil {
			return fmt.Errorf("%sDATABASE_INIT_RETRIES_DELAY: %w", Prefix, err)
		}
		cfg.DatabaseInitRetriesDelay = d
	}
	return nil
}

// decodeEnv JSON-decodes the variable into dst.  Values are lower-cased
// first so True/FALSE work for booleans.
func decodeEnv(key string, dst any) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(strings.ToLower(v)), dst); err != nil {
		return fmt.Errorf("%s%s: cannot decode %q: %w", Prefix, key, v, err)
	}
	return nil
}

// parseDelay accepts plain seconds ("2", "0.5") or a duration ("1500ms").
func parseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("negative delay %q", s)
		}
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative delay %q", s)
	}
	return d, nil
}

// lookup reads WARP_<key>; empty values count as unset.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(Prefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionTTL is SessionLifetime expressed as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionLifetime) * 24 * time.Hour
}

// NewLogger builds the JSON slog logger used by every entry point.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()}))
}
