package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotenv_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	n, err := LoadDotenv(filepath.Join(t.TempDir(), ".env"))
	if err != nil || n != 0 {
		t.Fatalf("LoadDotenv missing file = %d, %v", n, err)
	}
}

func TestLoadDotenv_LoadsValuesAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# comment\n" +
		"VS_FROM_FILE=loaded\n" +
		"VS_QUOTED=\"hello # world\"\n" +
		"export VS_EXPORTED=ok # trailing\n" +
		"VS_EXISTING=from_file\n" +
		"=novalue\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("VS_EXISTING", "already_set")
	for _, k := range []string{"VS_FROM_FILE", "VS_QUOTED", "VS_EXPORTED"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	n, err := LoadDotenv(envPath)
	if err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if n != 3 {
		t.Fatalf("loaded = %d, want 3", n)
	}

	want := map[string]string{
		"VS_FROM_FILE": "loaded",
		"VS_QUOTED":    "hello # world",
		"VS_EXPORTED":  "ok",
		"VS_EXISTING":  "already_set",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}
