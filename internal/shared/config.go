package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the process environment.
//
// It is read once at startup and treated as immutable afterwards.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	Artist      ArtistConfig      `toml:"artist"`
	Client      ClientConfig      `toml:"client"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	PublicBaseURL string `toml:"public_base_url"`
	Production    bool   `toml:"production"` // controls the Secure cookie attribute
}

// SessionConfig contains cookie sealing keys and token lifecycle windows.
type SessionConfig struct {
	EncryptKey    string   `toml:"encrypt_key"`
	SignKey       string   `toml:"sign_key"`
	StateTTL      Duration `toml:"state_ttl"`
	RefreshWindow Duration `toml:"refresh_window"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ArtistConfig tunes the artist lookup endpoint.
type ArtistConfig struct {
	Market    string   `toml:"market"`
	CacheTTL  Duration `toml:"cache_ttl"`
	RateLimit float64  `toml:"rate_limit"`
	Burst     int      `toml:"burst"`
}

// ClientConfig contains settings for the polling display client.
type ClientConfig struct {
	ServerURL     string   `toml:"server_url"`
	PollInterval  Duration `toml:"poll_interval"`
	FrameInterval Duration `toml:"frame_interval"`
}

// Duration is a [time.Duration] that decodes from strings such as "1s" or "10m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// RequireLogin reports whether the credentials needed to start the authorization flow are present.
func (s SpotifyConfig) RequireLogin() error {
	var missing []string
	if s.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if s.RedirectURI == "" {
		missing = append(missing, "REDIRECT_URI")
	}
	return missingCredentials(missing)
}

// RequireExchange reports whether the credentials needed to exchange an authorization code are present.
func (s SpotifyConfig) RequireExchange() error {
	var missing []string
	if s.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if s.RedirectURI == "" {
		missing = append(missing, "REDIRECT_URI")
	}
	return missingCredentials(missing)
}

// RequireApp reports whether the app-level (client credentials) credentials are present.
func (s SpotifyConfig) RequireApp() error {
	var missing []string
	if s.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	return missingCredentials(missing)
}

func missingCredentials(names []string) error {
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(names, ", "))
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads a dotenv file into the process environment without overriding existing variables.
//
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration values with environment variables looked up through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	lookup := func(keys ...string) string {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				return v
			}
		}
		return ""
	}

	if v := lookup("CLIENT_ID", "SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := lookup("CLIENT_SECRET", "SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := lookup("REDIRECT_URI", "SPOTIFY_REDIRECT_URI"); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := lookup("PUBLIC_BASE_URL"); v != "" {
		c.Server.PublicBaseURL = strings.TrimRight(v, "/")
	}
	if v := lookup("APP_ENV"); v != "" {
		c.Server.Production = strings.EqualFold(v, "production")
	}
	if v := lookup("SESSION_ENCRYPT_KEY"); v != "" {
		c.Session.EncryptKey = v
	}
	if v := lookup("SESSION_SIGN_KEY"); v != "" {
		c.Session.SignKey = v
	}
	if v := lookup("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := lookup("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}

	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://127.0.0.1:3000"
	}

	return nil
}
