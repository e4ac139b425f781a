package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName   = "foodctl"
	defaultConfigFile      = "config.yaml"
	defaultCredentialsFile = "credentials.json"
)

func DefaultConfigPath() string {
	if env := os.Getenv("FOODCTL_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(configDir(), defaultConfigFile)
}

func DefaultCredentialsPath() string {
	return filepath.Join(configDir(), defaultCredentialsFile)
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".foodctl")
}
