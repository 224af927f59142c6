package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "mcp-claude-code"

// GlobalDir is the per-user configuration directory:
// $XDG_CONFIG_HOME/mcp-claude-code, falling back to ~/.config (or
// %APPDATA% on Windows).
func GlobalDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if runtime.GOOS == "windows" {
			base = os.Getenv("APPDATA")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config")
		}
	}
	return filepath.Join(base, appName)
}

// Candidate file names, in load order. Later files override earlier ones.
var (
	configFileNames  = []string{"config.json", "config.jsonc", "config.yaml", "config.yml"}
	projectFileNames = []string{
		"." + appName + ".json",
		"." + appName + ".jsonc",
		"." + appName + ".yaml",
		"." + appName + ".yml",
	}
)
