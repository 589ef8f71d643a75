package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "puzzlemania/internal/errors"

	"github.com/spf13/viper"
)

const (
	KeyManifestURL     = "update.manifest-url"
	KeyFetchTimeout    = "update.fetch-timeout"
	KeyDownloadTimeout = "update.download-timeout"
	KeyDownloadDir     = "update.download-dir"
	KeyTargetPath      = "update.target-path"

	KeyPromptMode   = "prompt.mode"
	KeyOutputFormat = "output.format"

	KeyJournalPath    = "journal.path"
	KeyJournalEnabled = "journal.enabled"
)

const (
	// DefaultFetchTimeout bounds the manifest request.
	DefaultFetchTimeout = 6 * time.Second
	// DefaultDownloadTimeout bounds the whole artifact transfer.
	DefaultDownloadTimeout = 5 * time.Minute

	envPrefix = "PM"
	dirName   = ".puzzlemania"
)

// Prompt modes accepted by KeyPromptMode.
const (
	PromptModeAuto  = "auto"
	PromptModeTUI   = "tui"
	PromptModePlain = "plain"
)

type initSettings struct {
	workingDir        string
	projectConfigPath string
	userConfigPath    string
}

// Option configures Initialize behaviour. Useful for tests to override paths.
type Option func(*initSettings)

// WithWorkingDir overrides the directory used for project config discovery.
func WithWorkingDir(dir string) Option {
	return func(cfg *initSettings) {
		cfg.workingDir = dir
	}
}

// WithProjectConfig explicitly sets the project config path instead of discovery.
func WithProjectConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.projectConfigPath = path
	}
}

// WithUserConfig overrides the default user config path.
func WithUserConfig(path string) Option {
	return func(cfg *initSettings) {
		cfg.userConfigPath = path
	}
}

var (
	configOnce sync.Once
	configMu   sync.RWMutex
	configInst *viper.Viper
	initErr    error

	// userConfigPathOverride is used by tests to override the user config path.
	userConfigPathOverride string
)

// Initialize loads configuration using the precedence:
// defaults < user config < project config < environment variables < overrides.
func Initialize(opts ...Option) error {
	configOnce.Do(func() {
		settings := initSettings{}
		for _, opt := range opts {
			opt(&settings)
		}
		if settings.userConfigPath != "" {
			userConfigPathOverride = settings.userConfigPath
		}
		initErr = configure(&settings)
	})
	return initErr
}

// ApplyOverrides injects values typically coming from CLI flags.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	for k, v := range overrides {
		configInst.Set(k, v)
	}
	return nil
}

// GetString fetches a string configuration value, initializing on demand.
func GetString(key string) string {
	v, err := getViper()
	if err != nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool fetches a bool configuration value, initializing on demand.
func GetBool(key string) bool {
	v, err := getViper()
	if err != nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt fetches an integer configuration value, initializing on demand.
func GetInt(key string) int {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration fetches a duration configuration value, initializing on demand.
func GetDuration(key string) time.Duration {
	v, err := getViper()
	if err != nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set updates a configuration key at runtime, initializing on demand.
func Set(key string, value any) error {
	if err := Initialize(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if configInst == nil {
		return fmt.Errorf("configuration not initialized")
	}
	configInst.Set(key, value)
	return nil
}

// UpdateSettings is the validated view of the update.* and journal.* keys.
type UpdateSettings struct {
	ManifestURL     string
	FetchTimeout    time.Duration
	DownloadTimeout time.Duration
	DownloadDir     string
	TargetPath      string
	PromptMode      string
	OutputFormat    string
	JournalPath     string
	JournalEnabled  bool
}

// LoadUpdateSettings reads and validates the settings used by the update flow.
func LoadUpdateSettings() (UpdateSettings, error) {
	v, err := getViper()
	if err != nil {
		return UpdateSettings{}, apperrors.New(apperrors.CodeConfigurationError, "load configuration", err)
	}

	fetchTimeout, err := positiveDuration(v, KeyFetchTimeout)
	if err != nil {
		return UpdateSettings{}, err
	}
	downloadTimeout, err := positiveDuration(v, KeyDownloadTimeout)
	if err != nil {
		return UpdateSettings{}, err
	}

	mode := strings.ToLower(strings.TrimSpace(v.GetString(KeyPromptMode)))
	switch mode {
	case PromptModeAuto, PromptModeTUI, PromptModePlain:
	case "":
		mode = PromptModeAuto
	default:
		return UpdateSettings{}, apperrors.New(apperrors.CodeConfigurationError,
			fmt.Sprintf("%s must be one of auto, tui, plain (got %q)", KeyPromptMode, mode), nil)
	}

	journalPath := strings.TrimSpace(v.GetString(KeyJournalPath))
	if journalPath == "" {
		journalPath, err = defaultDataPath("journal.db")
		if err != nil {
			return UpdateSettings{}, apperrors.New(apperrors.CodeConfigurationError, "resolve journal path", err)
		}
	}

	return UpdateSettings{
		ManifestURL:     strings.TrimSpace(v.GetString(KeyManifestURL)),
		FetchTimeout:    fetchTimeout,
		DownloadTimeout: downloadTimeout,
		DownloadDir:     strings.TrimSpace(v.GetString(KeyDownloadDir)),
		TargetPath:      strings.TrimSpace(v.GetString(KeyTargetPath)),
		PromptMode:      mode,
		OutputFormat:    strings.TrimSpace(v.GetString(KeyOutputFormat)),
		JournalPath:     journalPath,
		JournalEnabled:  v.GetBool(KeyJournalEnabled),
	}, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, apperrors.New(apperrors.CodeConfigurationError, fmt.Sprintf("%s: invalid duration %q", key, raw), err)
	}
	if d <= 0 {
		return 0, apperrors.New(apperrors.CodeConfigurationError, fmt.Sprintf("%s must be positive (got %s)", key, d), nil)
	}
	return d, nil
}

func configure(settings *initSettings) error {
	workingDir := strings.TrimSpace(settings.workingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		workingDir = wd
	}

	userConfigPath := strings.TrimSpace(settings.userConfigPath)
	if userConfigPath == "" {
		path, err := defaultUserConfigPath()
		if err != nil {
			return err
		}
		userConfigPath = path
	}

	projectConfigPath := strings.TrimSpace(settings.projectConfigPath)
	if projectConfigPath == "" {
		path, err := findProjectConfig(workingDir)
		if err != nil {
			return err
		}
		projectConfigPath = path
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := mergeConfigFile(v, userConfigPath); err != nil {
		return fmt.Errorf("load user config: %w", err)
	}
	if err := mergeConfigFile(v, projectConfigPath); err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	configMu.Lock()
	defer configMu.Unlock()
	configInst = v
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	//nolint:gosec // G304: Config loader intentionally reads user and project config files
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	return defaultDataPath("config.yaml")
}

func defaultDataPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, dirName, name), nil
}

func findProjectConfig(startDir string) (string, error) {
	if strings.TrimSpace(startDir) == "" {
		return "", nil
	}
	dir := startDir
	for {
		candidate := filepath.Join(dir, dirName, "config.yaml")
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyManifestURL, "")
	v.SetDefault(KeyFetchTimeout, DefaultFetchTimeout.String())
	v.SetDefault(KeyDownloadTimeout, DefaultDownloadTimeout.String())
	v.SetDefault(KeyDownloadDir, "")
	v.SetDefault(KeyTargetPath, "")
	v.SetDefault(KeyPromptMode, PromptModeAuto)
	v.SetDefault(KeyOutputFormat, "rich")
	v.SetDefault(KeyJournalPath, "")
	v.SetDefault(KeyJournalEnabled, true)
}

func getViper() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	configMu.RLock()
	defer configMu.RUnlock()
	if configInst == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return configInst, nil
}

// reset clears package state for tests.
func reset() {
	configMu.Lock()
	defer configMu.Unlock()
	configInst = nil
	initErr = nil
	configOnce = sync.Once{}
	userConfigPathOverride = ""
}

// ResetForTesting clears package state for tests in other packages.
// Returns a cleanup function that should be deferred.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml")))
	return reset
}

// Save persists a single key to the appropriate config file.
// If a project config (.puzzlemania/config.yaml) exists, it updates that file.
// Otherwise, it updates the user config (~/.puzzlemania/config.yaml).
// The user config directory is auto-created if needed, but project config
// directories are never auto-created. The running configuration is updated too.
func Save(key string, value any) error {
	targetPath, err := WritablePath()
	if err != nil {
		return fmt.Errorf("find config path: %w", err)
	}

	// Fresh viper instance for this file only, so defaults and env values
	// are not written out.
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(targetPath)
	_ = v.ReadInConfig() // ignore error if file doesn't exist

	v.Set(key, value)

	dir := filepath.Dir(targetPath)
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := v.WriteConfigAs(targetPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return Set(key, value)
}

// WritablePath returns the config file Save writes to.
// Returns project config path if it exists, otherwise user config path.
func WritablePath() (string, error) {
	wd, err := os.Getwd()
	if err == nil {
		projectPath, err := findProjectConfig(wd)
		if err == nil && projectPath != "" {
			return projectPath, nil
		}
	}

	if userConfigPathOverride != "" {
		return userConfigPathOverride, nil
	}
	return defaultUserConfigPath()
}
