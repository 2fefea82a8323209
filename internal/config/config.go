// Package config loads runtime settings from the environment, with an
// optional .env file and an optional YAML layer-catalog overlay.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API APIConfig
	App AppConfig
}

type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type AppConfig struct {
	Environment string
	DataDir     string
	LogFilePath string
	LayersFile  string
}

// LayerOverride adjusts one catalog layer from the YAML overlay. Nil
// fields leave the default untouched.
type LayerOverride struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Active      *bool    `yaml:"active"`
	MinZoom     *float64 `yaml:"min_zoom"`
}

type layersFile struct {
	Layers []LayerOverride `yaml:"layers"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		API: APIConfig{
			BaseURL:        getEnv("LANDOS_API_URL", "http://localhost:8000/api"),
			TimeoutSeconds: getEnvAsInt("LANDOS_REQUEST_TIMEOUT", 30),
		},
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			DataDir:     getEnv("LANDOS_DATA_DIR", defaultDataDir()),
			LogFilePath: getEnv("LANDOS_LOG_FILE", ""),
			LayersFile:  getEnv("LANDOS_LAYERS_FILE", ""),
		},
	}
}

// RequestTimeout returns the API timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// ChatStorePath is where the chat session collection is persisted.
func (c *Config) ChatStorePath() string {
	return filepath.Join(c.App.DataDir, "chats.json")
}

// LayerOverrides reads the optional YAML overlay. No configured file, or a
// missing one, yields no overrides; a malformed file is an error.
func (c *Config) LayerOverrides() ([]LayerOverride, error) {
	if c.App.LayersFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.App.LayersFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var f layersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Layers, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".landos"
	}
	return filepath.Join(home, ".landos")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
