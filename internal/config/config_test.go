package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func TestSetLogger(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.InfoLevel))
	SetLogger(zerolog.Nop())
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host '127.0.0.1', got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != "12600" {
		t.Errorf("Expected port '12600', got %q", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:12600" {
		t.Errorf("Expected addr '127.0.0.1:12600', got %q", cfg.Server.Addr())
	}
	if cfg.Storage.Path != "./adventure.db" {
		t.Errorf("Expected storage path './adventure.db', got %q", cfg.Storage.Path)
	}
	if cfg.Media.Backend != MediaBackendFS {
		t.Errorf("Expected media backend %q, got %q", MediaBackendFS, cfg.Media.Backend)
	}
	if cfg.Media.S3.Region != "auto" || cfg.Media.S3.Prefix != "posts/" {
		t.Errorf("Unexpected s3 defaults: %+v", cfg.Media.S3)
	}
	if cfg.Uploads.MaxBytes != 100<<20 {
		t.Errorf("Expected max upload of 100MiB, got %d", cfg.Uploads.MaxBytes)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected log level 'info', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaultsNonStruct(t *testing.T) {
	s := "unchanged"
	ApplyDefaults(&s)
	if s != "unchanged" {
		t.Errorf("Expected non-struct to be left alone, got %q", s)
	}
}

func TestApplyDefaultsSlicesAndBools(t *testing.T) {
	type extra struct {
		Names   []string `default:"a, b,c"`
		Enabled bool     `default:"true"`
		Count   int      `default:"3"`
	}
	e := &extra{}
	ApplyDefaults(e)

	if !reflect.DeepEqual(e.Names, []string{"a", "b", "c"}) {
		t.Errorf("Expected trimmed slice default, got %v", e.Names)
	}
	if !e.Enabled || e.Count != 3 {
		t.Errorf("Unexpected defaults: %+v", e)
	}
}

func TestLoad(t *testing.T) {
	t.Run("Missing file uses defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != "12600" {
			t.Errorf("Expected default port, got %q", cfg.Server.Port)
		}
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: \"8080\"\nstorage:\n  path: /tmp/x.db\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != "8080" {
			t.Errorf("Expected port 8080, got %q", cfg.Server.Port)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("Expected unset host to keep its default, got %q", cfg.Server.Host)
		}
		if cfg.Storage.Path != "/tmp/x.db" {
			t.Errorf("Expected storage path override, got %q", cfg.Storage.Path)
		}
	})

	t.Run("S3 credentials from environment", func(t *testing.T) {
		t.Setenv(EnvS3AccessKeyID, "key-id")
		t.Setenv(EnvS3SecretAccessKey, "secret")
		path := writeConfig(t, "media:\n  backend: s3\n  s3:\n    bucket: photos\n")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Media.S3.AccessKeyID != "key-id" || cfg.Media.S3.SecretAccessKey != "secret" {
			t.Errorf("Expected credentials from env, got %+v", cfg.Media.S3)
		}
	})

	t.Run("Invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "server: [unterminated")
		if _, err := Load(path); err == nil {
			t.Error("Expected parse error")
		}
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "Defaults are valid", mutate: func(*Config) {}},
		{name: "Unknown backend", mutate: func(c *Config) { c.Media.Backend = "ftp" }, wantErr: "unknown media backend"},
		{name: "S3 without bucket", mutate: func(c *Config) { c.Media.Backend = MediaBackendS3 }, wantErr: "bucket"},
		{name: "FS without dir", mutate: func(c *Config) { c.Media.Dir = "" }, wantErr: "media.dir"},
		{name: "No storage path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage.path"},
		{name: "Zero upload limit", mutate: func(c *Config) { c.Uploads.MaxBytes = 0 }, wantErr: "max_bytes"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigSetsAppConfig(t *testing.T) {
	AppConfig = nil
	t.Cleanup(func() { AppConfig = nil })

	if err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if AppConfig == nil {
		t.Fatal("Expected AppConfig to be set")
	}
}

// The example written by cmd/generate-config must stay in sync with the struct tags.
func TestConfigDefaultsGoldenFile(t *testing.T) {
	golden, err := os.ReadFile("testdata/defaults.yaml")
	if err != nil {
		t.Fatalf("Failed to read golden defaults file: %v", err)
	}

	var want Config
	if err := yaml.Unmarshal(golden, &want); err != nil {
		t.Fatalf("Failed to parse golden config: %v", err)
	}

	got := Config{}
	ApplyDefaults(&got)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Defaults drifted from testdata/defaults.yaml:\n got %+v\nwant %+v", got, want)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}
