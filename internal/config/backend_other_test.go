//go:build !darwin

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partsbin", "config.json")

	b := openFileBackend(path)
	if err := b.SetInt("server.port", 4200); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetBool("log.development", true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	if err := b.SetString("llm.model", "google/gemini-2.0-flash"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	reopened := openFileBackend(path)
	if port, ok, err := reopened.GetInt("server.port"); err != nil || !ok || port != 4200 {
		t.Errorf("server.port = %d, %v, %v", port, ok, err)
	}
	if dev, ok, err := reopened.GetBool("log.development"); err != nil || !ok || !dev {
		t.Errorf("log.development = %v, %v, %v", dev, ok, err)
	}
	if model, ok, _ := reopened.GetString("llm.model"); !ok || model != "google/gemini-2.0-flash" {
		t.Errorf("llm.model = %q", model)
	}

	if err := reopened.Delete("llm.model"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := openFileBackend(path).GetString("llm.model"); ok {
		t.Error("llm.model still present after Delete")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}
}

func TestFileBackend_BoolStoredAsString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"log.development": "true", "server.port": "x"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openFileBackend(path)

	if dev, ok, err := b.GetBool("log.development"); err != nil || !ok || !dev {
		t.Errorf("log.development = %v, %v, %v", dev, ok, err)
	}
	if _, _, err := b.GetInt("server.port"); err == nil {
		t.Error("expected error for non-numeric server.port")
	}
}

func TestSecretsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	if _, err := keychainGet(keychainService, "llm_api_key"); err == nil {
		t.Fatal("expected error before any secret is stored")
	}

	if err := keychainSet(keychainService, "llm_api_key", "sk-or-1234"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	if err := keychainSet(keychainService, "server_token", "tok"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}

	got, err := keychainReader{}.Get(keychainService, "llm_api_key")
	if err != nil || got != "sk-or-1234" {
		t.Errorf("llm_api_key = %q, %v", got, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "partsbin", "secrets.json"))
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]string
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("secrets file is not a flat object: %v", err)
	}
	if onDisk["server_token"] != "tok" {
		t.Errorf("server_token on disk = %q", onDisk["server_token"])
	}

	if err := keychainSet(keychainService, "llm_api_key", ""); err != nil {
		t.Fatalf("removing secret: %v", err)
	}
	if _, err := keychainGet(keychainService, "llm_api_key"); err == nil {
		t.Error("llm_api_key still readable after removal")
	}
	if v, _ := keychainGet(keychainService, "server_token"); string(v) != "tok" {
		t.Errorf("server_token = %q after removing another secret", v)
	}
}
