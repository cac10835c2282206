// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/zephyr-sh/zephyr/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "zephyr"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"

	// EnvModulesDir overrides modules_dir.
	EnvModulesDir = "ZEPHYR_MODULES_DIR"
	// EnvAuditLog overrides audit_log.
	EnvAuditLog = "ZEPHYR_AUDIT_LOG"
	// EnvPublicKeyFile overrides security.public_key_file.
	EnvPublicKeyFile = "ZEPHYR_PUBLIC_KEY_FILE"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the zephyr configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DefaultPath returns the config file path inside dir, or inside ConfigDir
// when dir is empty.
func DefaultPath(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// loadWithOptions performs option-driven config loading. It returns the
// config and the path it was read from ("" when only defaults applied).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("modules_dir", string(defaults.ModulesDir))
	v.SetDefault("temp_dir", string(defaults.TempDir))
	v.SetDefault("audit_log", string(defaults.AuditLog))
	v.SetDefault("security.allow_local", defaults.Security.AllowLocal)
	v.SetDefault("security.protected_modules", defaults.Security.ProtectedModules)
	v.SetDefault("security.public_key_file", string(defaults.Security.PublicKeyFile))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color", string(defaults.UI.Color))

	for key, env := range map[string]string{
		"modules_dir":              EnvModulesDir,
		"audit_log":                EnvAuditLog,
		"security.public_key_file": EnvPublicKeyFile,
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, "", fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		path := string(opts.ConfigFilePath)
		if !fileExists(path) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Run 'zephyr config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", path)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", invalidFileError(path, err)
		}
		resolvedPath = path
	} else {
		cuePath, err := DefaultPath(string(opts.ConfigDirPath))
		if err != nil {
			return nil, "", err
		}
		// No config file means defaults plus environment.
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", invalidFileError(cuePath, err)
			}
			resolvedPath = cuePath
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Security.ProtectedModules == nil {
		cfg.Security.ProtectedModules = []string{}
	}

	// Environment values skip the CUE schema.
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check " + EnvModulesDir + " and " + EnvAuditLog + " are non-empty when set").
			WithSuggestion("Protected module names follow the module naming rules").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func invalidFileError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("Run 'zephyr config show' to see the effective configuration").
		Wrap(err).
		BuildError()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, MaxConfigFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// Zephyr Configuration File\n\n")

	fmt.Fprintf(&sb, "modules_dir: %q\n", cfg.ModulesDir)
	if cfg.TempDir != "" {
		fmt.Fprintf(&sb, "temp_dir: %q\n", cfg.TempDir)
	}
	fmt.Fprintf(&sb, "audit_log: %q\n", cfg.AuditLog)

	sb.WriteString("\nsecurity: {\n")
	fmt.Fprintf(&sb, "\tallow_local: %v\n", cfg.Security.AllowLocal)
	sb.WriteString("\tprotected_modules: [")
	for i, name := range cfg.Security.ProtectedModules {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", name)
	}
	sb.WriteString("]\n")
	if cfg.Security.PublicKeyFile != "" {
		fmt.Fprintf(&sb, "\tpublic_key_file: %q\n", cfg.Security.PublicKeyFile)
	}
	sb.WriteString("}\n")

	color := cfg.UI.Color
	if color == "" {
		color = ColorAuto
	}
	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor: %q\n", color)
	sb.WriteString("}\n")

	return sb.String()
}
