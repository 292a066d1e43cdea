package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/folio/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeToken, Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg.Token = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestStorageConfig_EmptyBackendDefaultsFS(t *testing.T) {
	cfg := StorageConfig{FS: FSConfig{Path: "./snaps"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default to fs: %v", err)
	}
	if cfg.Backend != StorageFS {
		t.Errorf("backend = %q, want %q", cfg.Backend, StorageFS)
	}
}

func TestStorageConfig_OnlySelectedBackendChecked(t *testing.T) {
	cfg := StorageConfig{Backend: StorageMemory}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory backend needs no settings: %v", err)
	}

	cfg = StorageConfig{Backend: StorageFS}
	if err := cfg.Validate(); err == nil {
		t.Error("fs backend without a path should fail")
	}

	cfg = StorageConfig{Backend: StorageS3, FS: FSConfig{Path: "./snaps"}}
	if err := cfg.Validate(); err == nil {
		t.Error("s3 backend without a bucket should fail")
	}
}

func TestStorageConfig_S3Keys(t *testing.T) {
	cfg := StorageConfig{Backend: StorageS3, S3: S3Config{Bucket: "docs", AccessKeyID: "AKID"}}
	if err := cfg.Validate(); err == nil {
		t.Error("access key without secret should fail")
	}

	cfg.S3.SecretAccessKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("static credentials should pass: %v", err)
	}
	p := cfg.S3.Provider()
	if p.Bucket != "docs" || p.AccessKeyID != "AKID" || p.SecretAccessKey != "secret" {
		t.Errorf("provider config = %+v", p)
	}
}

func TestStorageConfig_UnknownBackend(t *testing.T) {
	cfg := StorageConfig{Backend: "tape"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail validation")
	}
}

func TestWorkspaceConfig_UserRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Workspace.DefaultUserID = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch a missing default user")
	}
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	t.Setenv("FOLIO_TEST_BUCKET", "team-docs")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  http:
    port: 9090
storage:
  backend: s3
  s3:
    bucket: ${FOLIO_TEST_BUCKET}
    endpoint: http://minio:9000
    use_path_style: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Storage.S3.Bucket != "team-docs" || !cfg.Storage.S3.UsePathStyle {
		t.Errorf("s3 = %+v", cfg.Storage.S3)
	}
	if cfg.Storage.S3.Prefix != "folio/" || cfg.SQLite.Path != "./folio.db" {
		t.Error("defaults not kept for unset fields")
	}
}
