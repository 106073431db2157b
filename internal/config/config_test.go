package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
qdrant:
  url: "http://qdrant:6333"
  collection: "mydocs"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Qdrant.URL != "http://qdrant:6333" || cfg.Qdrant.Collection != "mydocs" {
		t.Errorf("unexpected qdrant config: %+v", cfg.Qdrant)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Chunking.Size != 1500 || cfg.Chunking.Overlap != 200 {
		t.Errorf("chunking defaults not applied: %+v", cfg.Chunking)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8000
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
uploads:
  dir: "./data/uploads"
registry:
  database_path: "./data/registry.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantUploads := filepath.Join(dir, "data", "uploads")
	if cfg.Uploads.Dir != wantUploads {
		t.Errorf("uploads dir = %s, want %s", cfg.Uploads.Dir, wantUploads)
	}
	wantDB := filepath.Join(dir, "data", "registry.db")
	if cfg.Registry.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Registry.DatabasePath, wantDB)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Qdrant.URL != "http://localhost:6333" || cfg.Qdrant.Collection != "docent-docs" {
		t.Errorf("qdrant defaults: %+v", cfg.Qdrant)
	}
	if cfg.Gemini.ChatModel != "gemini-2.5-flash" || cfg.Gemini.EmbedModel != "text-embedding-004" {
		t.Errorf("gemini defaults: %+v", cfg.Gemini)
	}
	if cfg.Gemini.APIKeyEnv != "GOOGLE_API_KEY" {
		t.Errorf("api key env: got %s", cfg.Gemini.APIKeyEnv)
	}
	if cfg.Gemini.Temperature != 0.7 {
		t.Errorf("temperature: got %f", cfg.Gemini.Temperature)
	}
	if cfg.Retrieval.K != 3 || cfg.Retrieval.FetchK != 10 || cfg.Retrieval.Lambda != 0.5 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Session.MaxTurns != 40 || cfg.Session.MaxSessions != 1024 || cfg.Session.TTLMins != 120 {
		t.Errorf("session defaults: %+v", cfg.Session)
	}
}

func TestUploadsConfig_WatchOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		u := &UploadsConfig{}
		if !u.WatchOrDefault() {
			t.Error("WatchOrDefault() should default to true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		u := &UploadsConfig{Watch: &f}
		if u.WatchOrDefault() {
			t.Error("WatchOrDefault() = true, want false")
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Qdrant: QdrantConfig{URL: "http://localhost:6333", Collection: "docs"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Qdrant.Collection != "docs" {
		t.Errorf("loaded config: %+v", loaded)
	}
}
