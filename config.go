package deluge

import (
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultURL is the JSON-RPC path served by a local deluge-web.
	DefaultURL = "http://localhost:8112/json"
	// DefaultPassword is deluge-web's out-of-the-box password.
	DefaultPassword = "deluge"
	// DefaultRequestTimeout bounds a single HTTP exchange.
	DefaultRequestTimeout = 30 * time.Second
	// MaxDefaultID is the upper bound of the random correlation id.
	MaxDefaultID = 1000
)

// Config contains runtime client settings and credentials.
type Config struct {
	// URL of the deluge-web JSON-RPC endpoint.
	URL      string
	Password string
	// ID tags every request. Zero picks a random value in [1, MaxDefaultID]
	// that stays fixed for the client's lifetime.
	ID             int
	RequestTimeout time.Duration

	// RateLimit caps outgoing requests per second, 0 disables throttling.
	RateLimit float64
	RateBurst int

	Debug bool
	// Logger overrides the logger derived from Debug.
	Logger *zerolog.Logger
	// HTTPClient is used for every exchange. A cookie jar is attached to a
	// copy of it when it has none.
	HTTPClient *http.Client
}

// fileConfig mirrors the keys accepted by LoadConfig.
type fileConfig struct {
	URL            string  `toml:"url" yaml:"url"`
	Password       string  `toml:"password" yaml:"password"`
	ID             int     `toml:"id" yaml:"id"`
	RequestTimeout string  `toml:"request_timeout" yaml:"request_timeout"`
	RateLimit      float64 `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst" yaml:"rate_burst"`
	Debug          bool    `toml:"debug" yaml:"debug"`
}

// LoadConfig reads a .toml, .yaml or .yml file into a Config. Missing keys
// keep their zero value so defaults still apply in New.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return Config{}, errors.Wrapf(err, "decode toml config %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, errors.Wrapf(err, "decode yaml config %s", path)
		}
	default:
		return Config{}, errors.Errorf("unsupported config format %q", ext)
	}

	cfg := Config{
		URL:       fc.URL,
		Password:  fc.Password,
		ID:        fc.ID,
		RateLimit: fc.RateLimit,
		RateBurst: fc.RateBurst,
		Debug:     fc.Debug,
	}

	if fc.RequestTimeout != "" {
		cfg.RequestTimeout, err = time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return Config{}, errors.Wrap(err, "invalid request_timeout")
		}
	}

	return cfg, nil
}

// withDefaults returns a copy of c with unset fields filled in.
func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	if c.ID == 0 {
		c.ID = rand.Intn(MaxDefaultID) + 1
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	return c
}

// Validate reports configuration values the client cannot work with.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.Wrap(err, "invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("invalid URL %q: scheme must be http or https", c.URL)
	}
	if u.Host == "" {
		return errors.Errorf("invalid URL %q: missing host", c.URL)
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	return nil
}

// logger resolves the logger used by the client.
func (c Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	if !c.Debug {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Str("component", "deluge").Logger()
}
