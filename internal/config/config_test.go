package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "VAI_STUDIO_") || key == "GEMINI_API_KEY" || key == "GOOGLE_API_KEY" {
			t.Setenv(key, "")
		}
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Gemini.APIKey != "" {
		t.Fatal("no key expected without env or file")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[gemini]
api_key = "from-file"
chat_model = "models/gemini-custom"

[video]
poll_interval = "3s"

[live]
voice = "Puck"
block_size = 2048

[logging]
level = "DEBUG"
`)
	t.Setenv("VAI_STUDIO_LIVE_VOICE", "Kore")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gemini.APIKey != "from-file" {
		t.Fatalf("APIKey = %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.ChatModel != "gemini-custom" {
		t.Fatalf("ChatModel = %q, want models/ prefix stripped", cfg.Gemini.ChatModel)
	}
	if cfg.Video.PollInterval.Duration != 3*time.Second {
		t.Fatalf("PollInterval = %v", cfg.Video.PollInterval)
	}
	if cfg.Live.Voice != "Kore" || cfg.Live.BlockSize != 2048 {
		t.Fatalf("Live = %+v", cfg.Live)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_APIKeyEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gemini.APIKey != "google" {
		t.Fatalf("APIKey = %q, want GOOGLE_API_KEY fallback", cfg.Gemini.APIKey)
	}

	t.Setenv("GEMINI_API_KEY", "gemini")
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gemini.APIKey != "gemini" {
		t.Fatalf("APIKey = %q, want GEMINI_API_KEY to win", cfg.Gemini.APIKey)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[gemini]\nmodel = \"x\"\n", "parse config"},
		{"bad duration", "[video]\npoll_interval = \"soon\"\n", "invalid duration"},
		{"zero interval", "[video]\npoll_interval = \"0s\"\n", "poll_interval must be positive"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"bad format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"bad block", "[live]\nblock_size = -1\n", "block_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Video.PollInterval.Duration = 7 * time.Second
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `poll_interval = '7s'`) && !strings.Contains(string(data), `poll_interval = "7s"`) {
		t.Fatalf("encoded config missing duration:\n%s", data)
	}

	loaded, err := Load(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Video.PollInterval.Duration != 7*time.Second {
		t.Fatalf("PollInterval = %v", loaded.Video.PollInterval)
	}
}
