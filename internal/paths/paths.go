// Package paths resolves configuration and data directory locations.
//
// The persisted layout is fixed for compatibility with existing
// installations: credentials and settings live under the config directory,
// drafts under <data>/testCases.
package paths

import (
	"os"
	"path/filepath"
)

// CWD-relative directory names.
const (
	DefaultConfigDirName = "config"
	DraftsDirName        = "testCases"
)

// File names inside the config directory.
const (
	SettingsFileName   = "settings.json"
	XrayConfigFileName = "xray-config.json"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "XRAYDRAFT_CONFIG_DIR"
	EnvDataDir   = "XRAYDRAFT_DATA_DIR"
)

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > XRAYDRAFT_CONFIG_DIR env > $(CWD)/config.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultConfigDirName), nil
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > configYAMLValue > XRAYDRAFT_DATA_DIR env > CWD.
//
// The CWD-relative default keeps testCases/ next to the config directory,
// matching the layout the tool has always used.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return os.Getwd()
}

// DraftsRoot returns the drafts root directory under dataDir.
func DraftsRoot(dataDir string) string {
	return filepath.Join(dataDir, DraftsDirName)
}

// SettingsFile returns the path of the settings document.
func SettingsFile(configDir string) string {
	return filepath.Join(configDir, SettingsFileName)
}

// XrayConfigFile returns the path of the Xray credentials document.
func XrayConfigFile(configDir string) string {
	return filepath.Join(configDir, XrayConfigFileName)
}
