package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (DISPATCH_*)
// 3. User config file (~/.config/dispatch/config.yaml)
// 4. System config file (/etc/dispatch/config.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	// Set config search paths (order matters)
	// User config (highest priority)
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "dispatch"))
	}

	// Home directory fallback
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".dispatch"))
	}

	// System-wide config (lower priority)
	viper.AddConfigPath("/etc/dispatch")

	// Current directory (for development)
	viper.AddConfigPath(".")

	// Environment variables
	viper.SetEnvPrefix("DISPATCH")
	viper.AutomaticEnv()

	// Set defaults (lowest priority)
	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; will use defaults
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for all config keys
func setDefaults() {
	viper.SetDefault("debug", false)
	viper.SetDefault("quiet", false)
	viper.SetDefault("qsub_bin", "qsub")
	viper.SetDefault("qstat_bin", "qstat")
	viper.SetDefault("queue_conf", filepath.Join("conf", "queue.conf"))

	// Completion monitor defaults
	viper.SetDefault("poll.initial_ms", 100)
	viper.SetDefault("poll.growth", 1.2)
	viper.SetDefault("poll.max_ms", 3000)
	viper.SetDefault("poll.liveness_every", 10)
	viper.SetDefault("poll.kick_waits_s", []int{3, 7, 60})
}

// LoadFromViper copies resolved Viper values into the Global config.
// LoadDefaults must have been called first.
func LoadFromViper() {
	Global.Debug = viper.GetBool("debug")
	Global.Quiet = viper.GetBool("quiet")
	Global.QsubBin = viper.GetString("qsub_bin")
	Global.QstatBin = viper.GetString("qstat_bin")
	Global.QueueConf = viper.GetString("queue_conf")

	if ms := viper.GetInt("poll.initial_ms"); ms > 0 {
		Global.PollInitial = time.Duration(ms) * time.Millisecond
	}
	if g := viper.GetFloat64("poll.growth"); g > 1.0 {
		Global.PollGrowth = g
	}
	if ms := viper.GetInt("poll.max_ms"); ms > 0 {
		Global.PollMax = time.Duration(ms) * time.Millisecond
	}
	if n := viper.GetInt("poll.liveness_every"); n > 0 {
		Global.LivenessEvery = n
	}
	if waits := viper.GetIntSlice("poll.kick_waits_s"); len(waits) > 0 {
		kicks := make([]time.Duration, 0, len(waits))
		for _, w := range waits {
			if w > 0 {
				kicks = append(kicks, time.Duration(w)*time.Second)
			}
		}
		if len(kicks) > 0 {
			Global.KickWaits = kicks
		}
	}
}

// GetUserConfigPath returns the path to the user config file
func GetUserConfigPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".dispatch", ConfigFilename+"."+ConfigType), nil
	}

	return filepath.Join(userConfigDir, "dispatch", ConfigFilename+"."+ConfigType), nil
}
