package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "puzzlemania/internal/errors"
)

func TestInitializeLoadsDefaults(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")

	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyManifestURL); got != "" {
		t.Fatalf("expected default %s to be empty, got %q", KeyManifestURL, got)
	}
	if got := GetDuration(KeyFetchTimeout); got != DefaultFetchTimeout {
		t.Fatalf("expected default %s = %s, got %s", KeyFetchTimeout, DefaultFetchTimeout, got)
	}
	if got := GetString(KeyPromptMode); got != PromptModeAuto {
		t.Fatalf("expected default %s to be auto, got %q", KeyPromptMode, got)
	}
	if !GetBool(KeyJournalEnabled) {
		t.Fatalf("expected default %s to be true", KeyJournalEnabled)
	}
}

func TestProjectConfigOverridesUser(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "repo")
	nested := filepath.Join(projectDir, "sub", "dir")
	mustMkdir(t, nested)
	writeFile(t, filepath.Join(projectDir, ".puzzlemania", "config.yaml"), `
update:
  manifest-url: https://project.example/version.json
output:
  format: plain
`)

	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
update:
  manifest-url: https://user.example/version.json
  fetch-timeout: 2s
`)

	if err := Initialize(WithWorkingDir(nested), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyManifestURL); got != "https://project.example/version.json" {
		t.Fatalf("expected project config to win for %s, got %q", KeyManifestURL, got)
	}
	if got := GetDuration(KeyFetchTimeout); got != 2*time.Second {
		t.Fatalf("expected user fetch timeout to survive merge, got %s", got)
	}
	if got := GetString(KeyOutputFormat); got != "plain" {
		t.Fatalf("expected project output format, got %q", got)
	}
}

func TestEnvironmentAndOverridesPrecedence(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	projectCfg := filepath.Join(tmp, ".puzzlemania", "config.yaml")
	writeFile(t, projectCfg, `
update:
  manifest-url: https://project.example/version.json
journal:
  enabled: true
`)

	t.Setenv("PM_UPDATE_MANIFEST_URL", "https://env.example/version.json")
	t.Setenv("PM_JOURNAL_ENABLED", "false")

	if err := Initialize(
		WithWorkingDir(tmp),
		WithProjectConfig(projectCfg),
		WithUserConfig(filepath.Join(tmp, "user.yaml")),
	); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if got := GetString(KeyManifestURL); got != "https://env.example/version.json" {
		t.Fatalf("expected env override for %s, got %q", KeyManifestURL, got)
	}
	if GetBool(KeyJournalEnabled) {
		t.Fatalf("expected environment variable to override %s", KeyJournalEnabled)
	}

	if err := ApplyOverrides(map[string]any{KeyManifestURL: "https://flag.example/version.json"}); err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}
	if got := GetString(KeyManifestURL); got != "https://flag.example/version.json" {
		t.Fatalf("expected CLI override for %s, got %q", KeyManifestURL, got)
	}
}

func TestLoadUpdateSettings(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "user.yaml")
	writeFile(t, userCfg, `
update:
  manifest-url: " https://updates.example/version.json "
  download-timeout: 90s
prompt:
  mode: PLAIN
journal:
  path: /var/lib/pm/journal.db
`)
	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	s, err := LoadUpdateSettings()
	if err != nil {
		t.Fatalf("LoadUpdateSettings returned error: %v", err)
	}
	if s.ManifestURL != "https://updates.example/version.json" {
		t.Errorf("ManifestURL = %q", s.ManifestURL)
	}
	if s.FetchTimeout != DefaultFetchTimeout {
		t.Errorf("FetchTimeout = %s, want %s", s.FetchTimeout, DefaultFetchTimeout)
	}
	if s.DownloadTimeout != 90*time.Second {
		t.Errorf("DownloadTimeout = %s, want 90s", s.DownloadTimeout)
	}
	if s.PromptMode != PromptModePlain {
		t.Errorf("PromptMode = %q, want plain", s.PromptMode)
	}
	if s.JournalPath != "/var/lib/pm/journal.db" {
		t.Errorf("JournalPath = %q", s.JournalPath)
	}
}

func TestLoadUpdateSettingsRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"negative timeout": "update:\n  fetch-timeout: -1s\n",
		"unparsable":       "update:\n  download-timeout: soon\n",
		"unknown prompt":   "prompt:\n  mode: gui\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			reset()
			t.Cleanup(reset)

			tmp := t.TempDir()
			userCfg := filepath.Join(tmp, "user.yaml")
			writeFile(t, userCfg, body)
			if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
				t.Fatalf("Initialize returned error: %v", err)
			}

			_, err := LoadUpdateSettings()
			if !apperrors.IsCode(err, apperrors.CodeConfigurationError) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestSaveWritesUserConfig(t *testing.T) {
	reset()
	t.Cleanup(reset)

	tmp := t.TempDir()
	userCfg := filepath.Join(tmp, "home", ".puzzlemania", "config.yaml")
	if err := Initialize(WithWorkingDir(tmp), WithUserConfig(userCfg)); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if err := Save(KeyManifestURL, "https://saved.example/version.json"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	data, err := os.ReadFile(userCfg)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if !strings.Contains(string(data), "https://saved.example/version.json") {
		t.Fatalf("saved config missing value:\n%s", data)
	}
	if got := GetString(KeyManifestURL); got != "https://saved.example/version.json" {
		t.Fatalf("running config not updated, got %q", got)
	}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
