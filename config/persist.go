package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/concord/errors"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail config save)
		fmt.Printf("⚠️  Failed to delete old backup %s: %v\n", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, 0644); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// GetAutoConfigPath returns the path to the system-managed overlay in
// ~/.concord/concord_auto.toml. Usage analysis writes adjusted thresholds
// here rather than editing the user's own config file.
func GetAutoConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".concord", "concord_auto.toml")
}

// loadOrInitializeAutoConfig loads the overlay file, or creates an empty one if it doesn't exist
func loadOrInitializeAutoConfig() (map[string]interface{}, string, error) {
	configPath := GetAutoConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	// Ensure ~/.concord directory exists
	concordDir := filepath.Dir(configPath)
	if err := os.MkdirAll(concordDir, 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .concord directory")
	}

	// Try to read existing config
	var config map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		// File exists, parse it
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse auto config")
		}
	} else {
		// File doesn't exist, create empty config
		config = make(map[string]interface{})
	}

	return config, configPath, nil
}

// saveAutoConfig writes the config to the overlay file with backup
func saveAutoConfig(config map[string]interface{}, configPath string) error {
	// Create backup
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	// Marshal to TOML
	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write auto config")
	}

	return nil
}

// updateCacheFloat updates a single float setting in the [cache] section of the overlay
func updateCacheFloat(key string, value float64) error {
	config, configPath, err := loadOrInitializeAutoConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load auto config")
	}

	// Get or create cache section
	var cache map[string]interface{}
	if c, ok := config["cache"].(map[string]interface{}); ok {
		cache = c
	} else {
		cache = make(map[string]interface{})
	}

	cache[key] = value
	config["cache"] = cache

	return saveAutoConfig(config, configPath)
}

// UpdateSimilarityThreshold persists an adjusted cache.similarity_threshold.
// Values are clamped to the adaptive range before writing.
func UpdateSimilarityThreshold(threshold float64) error {
	return updateCacheFloat("similarity_threshold", clampAdaptive(threshold))
}

// UpdatePredictiveThreshold persists an adjusted cache.predictive_threshold.
// Values are clamped to the adaptive range before writing.
func UpdatePredictiveThreshold(threshold float64) error {
	return updateCacheFloat("predictive_threshold", clampAdaptive(threshold))
}

// UpdateLocalInferenceEnabled updates the local_inference.enabled setting in the overlay
func UpdateLocalInferenceEnabled(enabled bool) error {
	config, configPath, err := loadOrInitializeAutoConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load auto config")
	}

	// Get or create local_inference section
	var localInference map[string]interface{}
	if li, ok := config["local_inference"].(map[string]interface{}); ok {
		localInference = li
	} else {
		localInference = make(map[string]interface{})
	}

	localInference["enabled"] = enabled
	config["local_inference"] = localInference

	return saveAutoConfig(config, configPath)
}

// clampAdaptive bounds a threshold to the range usage analysis may set
func clampAdaptive(v float64) float64 {
	if v < MinAdaptiveThreshold {
		return MinAdaptiveThreshold
	}
	if v > MaxAdaptiveThreshold {
		return MaxAdaptiveThreshold
	}
	return v
}
