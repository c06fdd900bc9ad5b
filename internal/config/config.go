package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

type Config struct {
	Port           int              `mapstructure:"port"`
	Host           string           `mapstructure:"host"`
	Environment    string           `mapstructure:"environment"`
	DisableAuth    bool             `mapstructure:"disable_auth"`
	PrevizHome     string           `mapstructure:"previz_home"`
	AssetsDir      string           `mapstructure:"assets_dir"`
	TempDir        string           `mapstructure:"temp_dir"`
	PublicDir      string           `mapstructure:"public_dir"`
	FilesystemType string           `mapstructure:"filesystem_type"`
	DB             *DBConfig        `mapstructure:"db"`
	Pulsar         *PulsarConfig    `mapstructure:"pulsar"`
	S3             *S3Config        `mapstructure:"s3"`
	OpenAI         *OpenAIConfig    `mapstructure:"openai"`
	Replicate      *ReplicateConfig `mapstructure:"replicate"`
	Fal            *FalConfig       `mapstructure:"fal"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// PulsarConfig enables the broker-backed analysis queue; the in-process
// queue is used when unset.
type PulsarConfig struct {
	URL string `mapstructure:"url"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	VanityUrl   string `mapstructure:"vanity_url"`
	EndpointUrl string `mapstructure:"endpoint_url"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type ReplicateConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type FalConfig struct {
	APIKey string `mapstructure:"api_key"`
}

var config *Config

// LoadEnvAndConfigFiles resolves the previz home directory, loads the .env
// and config.yaml files if they exist, and unmarshals the merged settings.
func LoadEnvAndConfigFiles() error {
	previzHome, err := getPrevizHome()
	if err != nil {
		return err
	}

	if err := createPrevizHomeDirs(previzHome); err != nil {
		return err
	}

	viper.Set("previz_home", previzHome)
	viper.Set("assets_dir", filepath.Join(previzHome, "assets"))
	viper.Set("temp_dir", filepath.Join(previzHome, "temp"))

	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = filepath.Join(previzHome, ".env")
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	configFile := viper.GetString("config_file")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		viper.AddConfigPath(previzHome)
	}

	if err := LoadConfig(false); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			fmt.Println("No config file found. Using default config.")
		} else {
			return err
		}
	}

	return nil
}

func LoadConfig(reload bool) error {
	if config != nil && !reload {
		return fmt.Errorf("config already loaded")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	config = &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	applyDefaults(config)
	return nil
}

func GetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}

func MustGetConfig() *Config {
	return GetConfig()
}

func applyDefaults(cfg *Config) {
	if cfg.FilesystemType == "" {
		cfg.FilesystemType = FilesystemLocal
	}
	if cfg.DB == nil {
		cfg.DB = &DBConfig{}
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "sqlite"
	}
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = DefaultDBDSN
	}
}

// Returns the previz home directory path, from the first of:
// 1. The `previz_home` flag from viper.
// 2. The `PREVIZ_HOME` environment variable.
// 3. The default home directory.
func getPrevizHome() (string, error) {
	previzHome := viper.GetString("previz_home")
	if previzHome == "" {
		previzHome = os.Getenv("PREVIZ_HOME")
	}
	if previzHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", ErrPrevizHomeNotSet
		}
		previzHome = filepath.Join(home, DefaultHomeDirName)
	}

	if strings.HasPrefix(previzHome, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", ErrPrevizHomeExpandFailed
		}
		previzHome = filepath.Join(home, strings.TrimPrefix(previzHome, "~"))
	}

	return previzHome, nil
}

func createPrevizHomeDirs(previzHome string) error {
	subdirs := []string{"assets", "temp"}
	if err := os.MkdirAll(previzHome, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create previz home directory: %w", err)
	}

	for _, subdir := range subdirs {
		dir := filepath.Join(previzHome, subdir)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", subdir, err)
		}
	}

	return nil
}
