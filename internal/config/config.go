package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wronai/taskguard/pkg/cerr"
	"github.com/wronai/taskguard/pkg/clog"
)

// FileName is the per-project policy configuration file.
const FileName = ".taskguard.yaml"

// StateDir holds session state, checkpoints, locks and the audit log.
const StateDir = ".taskguard"

// FocusConfig controls the single-active-task discipline.
type FocusConfig struct {
	MaxFilesPerTask             int  `yaml:"max_files_per_task"`
	TaskTimeoutMinutes          int  `yaml:"task_timeout_minutes"`
	RequireDependencyCompletion bool `yaml:"require_dependency_completion"`
	// AllowUntaskedWork permits file-touching commands while no task is
	// active instead of blocking them.
	AllowUntaskedWork bool `yaml:"allow_untasked_work"`
	AutoChangelog     bool `yaml:"auto_changelog"`
}

// LanguageRules enables best-practice checks for one language.
type LanguageRules struct {
	EnforceDocComments     bool   `yaml:"enforce_doc_comments"`
	EnforceTypeAnnotations bool   `yaml:"enforce_type_annotations"`
	MaxFunctionLength      int    `yaml:"max_function_length"`
	NamingConvention       string `yaml:"naming_convention"`
	RequireErrorHandling   bool   `yaml:"require_error_handling"`
	NoHardcodedValues      bool   `yaml:"no_hardcoded_values"`
}

// InferenceConfig points the document parser at a local LLM endpoint.
type InferenceConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request budget as a duration.
func (c InferenceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Config is the project policy configuration loaded from .taskguard.yaml.
type Config struct {
	Focus         FocusConfig              `yaml:"focus"`
	BestPractices map[string]LanguageRules `yaml:"best_practices"`
	Inference     InferenceConfig          `yaml:"inference"`
}

// Default returns the built-in configuration, mirroring what Init writes.
func Default() *Config {
	return &Config{
		Focus: FocusConfig{
			MaxFilesPerTask:             3,
			TaskTimeoutMinutes:          30,
			RequireDependencyCompletion: true,
			AllowUntaskedWork:           false,
			AutoChangelog:               true,
		},
		BestPractices: map[string]LanguageRules{
			"python": {
				EnforceDocComments:     true,
				EnforceTypeAnnotations: true,
				MaxFunctionLength:      50,
				NamingConvention:       "snake_case",
				NoHardcodedValues:      true,
			},
			"javascript": {
				EnforceDocComments:   true,
				MaxFunctionLength:    30,
				NamingConvention:     "camelCase",
				RequireErrorHandling: true,
				NoHardcodedValues:    true,
			},
			"go": {
				EnforceDocComments: true,
				MaxFunctionLength:  60,
				NamingConvention:   "mixedCaps",
				NoHardcodedValues:  true,
			},
		},
		Inference: InferenceConfig{
			Provider:       "ollama",
			Model:          "llama3.2:3b",
			BaseURL:        "http://localhost:11434",
			TimeoutSeconds: 30,
		},
	}
}

// Load reads the project configuration from dir, layering file values over
// the defaults. A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, cerr.NewError(cerr.Internal, "failed to read configuration", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerr.NewErrorWithHint(cerr.Validation, "malformed "+FileName, err,
			"fix the YAML syntax or delete the file to regenerate defaults")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Focus.MaxFilesPerTask < 0 {
		return cerr.NewError(cerr.Validation, "focus.max_files_per_task must not be negative", nil)
	}
	if c.Focus.TaskTimeoutMinutes < 0 {
		return cerr.NewError(cerr.Validation, "focus.task_timeout_minutes must not be negative", nil)
	}
	if c.Inference.TimeoutSeconds <= 0 {
		return cerr.NewError(cerr.Validation, "inference.timeout_seconds must be positive", nil)
	}
	switch c.Inference.Provider {
	case "ollama", "lmstudio":
	default:
		return cerr.NewError(cerr.Validation,
			fmt.Sprintf("unknown inference.provider %q", c.Inference.Provider), nil)
	}
	return nil
}

// Write persists the configuration to dir with a short header comment.
func (c *Config) Write(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to marshal configuration", err)
	}
	header := "# TaskGuard project configuration\n# Focus policy, best practices and inference settings\n\n"
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return cerr.NewError(cerr.Internal, "failed to write configuration", err)
	}
	return nil
}

// Env is the operational environment configuration (TASKGUARD_* variables).
type Env struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StorageType    string `envconfig:"STORAGE_TYPE" default:"local"`
	StorageBaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskguard/data"`
	// S3 settings (used when StorageType == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskguard/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

func (e *Env) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	return clog.ParseLevel(e.LogLevel)
}
