package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./spotify-feature.db" {
			t.Errorf("expected database path ./spotify-feature.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Session.StateTTL.Duration != 10*time.Minute {
			t.Errorf("expected state ttl 10m, got %v", config.Session.StateTTL)
		}

		if config.Client.PollInterval.Duration != time.Second {
			t.Errorf("expected poll interval 1s, got %v", config.Client.PollInterval)
		}

		if config.Client.FrameInterval.Duration != 16*time.Millisecond {
			t.Errorf("expected frame interval 16ms, got %v", config.Client.FrameInterval)
		}

		if config.Artist.Market != "US" {
			t.Errorf("expected market US, got %s", config.Artist.Market)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 8080

[session]
state_ttl = "2m"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:8080/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Session.StateTTL.Duration != 2*time.Minute {
			t.Errorf("expected state ttl 2m, got %v", config.Session.StateTTL)
		}
		if config.Session.RefreshWindow.Duration != 5*time.Minute {
			t.Errorf("unset refresh window should keep default 5m, got %v", config.Session.RefreshWindow)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("LoadConfig with invalid duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[client]\npoll_interval = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid duration")
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	t.Run("overrides credentials and server", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{
			"CLIENT_ID":        "abc",
			"CLIENT_SECRET":    "shh",
			"REDIRECT_URI":     "https://example.com/callback",
			"PUBLIC_BASE_URL":  "https://example.com/",
			"APP_ENV":          "production",
			"PORT":             "9000",
			"SESSION_SIGN_KEY": "sign",
			"DATABASE_PATH":    ":memory:",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sp := config.Credentials.Spotify
		if sp.ClientID != "abc" || sp.ClientSecret != "shh" || sp.RedirectURI != "https://example.com/callback" {
			t.Errorf("unexpected spotify credentials: %+v", sp)
		}
		if config.Server.PublicBaseURL != "https://example.com" {
			t.Errorf("expected trailing slash trimmed, got %s", config.Server.PublicBaseURL)
		}
		if !config.Server.Production {
			t.Error("expected production mode")
		}
		if config.Server.Port != 9000 {
			t.Errorf("expected port 9000, got %d", config.Server.Port)
		}
		if config.Session.SignKey != "sign" {
			t.Errorf("expected sign key from env, got %q", config.Session.SignKey)
		}
		if config.Database.Path != ":memory:" {
			t.Errorf("expected database path from env, got %s", config.Database.Path)
		}
	})

	t.Run("falls back to prefixed names", func(t *testing.T) {
		config := DefaultConfig()
		if err := config.ApplyEnv(env(map[string]string{"SPOTIFY_CLIENT_ID": "prefixed"})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Credentials.Spotify.ClientID != "prefixed" {
			t.Errorf("expected prefixed client id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("rejects invalid port", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{"PORT": "eighty"}))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSpotifyConfigRequirements(t *testing.T) {
	full := SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:3000/callback"}

	t.Run("complete credentials", func(t *testing.T) {
		for name, err := range map[string]error{
			"login":    full.RequireLogin(),
			"exchange": full.RequireExchange(),
			"app":      full.RequireApp(),
		} {
			if err != nil {
				t.Errorf("%s: unexpected error %v", name, err)
			}
		}
	})

	t.Run("login needs only id and redirect", func(t *testing.T) {
		cfg := full
		cfg.ClientSecret = ""
		if err := cfg.RequireLogin(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := cfg.RequireExchange(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("missing client id", func(t *testing.T) {
		cfg := full
		cfg.ClientID = ""
		if err := cfg.RequireApp(); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("loads values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("SPOTIFY_FEATURE_TEST_VALUE=loaded\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("SPOTIFY_FEATURE_TEST_VALUE") })

		if err := LoadEnvFile(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := os.Getenv("SPOTIFY_FEATURE_TEST_VALUE"); got != "loaded" {
			t.Errorf("expected loaded, got %q", got)
		}
	})
}
