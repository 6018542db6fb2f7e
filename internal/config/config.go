package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	ClientConfig
	SessionConfig
	RBACConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
}

type mainConfig struct {
	values Values
}

var _ Config = mainConfig{}

// New builds a Config from the environment (and a .env file when present).
func New() Config {
	_ = godotenv.Load()
	return mainConfig{values: FromEnv()}
}

// Load builds a Config from the environment and then overlays the YAML file at path.
// An empty path skips the file. The merged values are validated.
func Load(path string) (Config, error) {
	values, err := LoadValues(path)
	if err != nil {
		return nil, err
	}
	return FromValues(values)
}

// LoadValues is Load without validation, for callers that overlay further
// settings (command line flags) before calling FromValues.
func LoadValues(path string) (Values, error) {
	_ = godotenv.Load()
	values := FromEnv()

	if path == "" {
		return values, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return Values{}, fmt.Errorf("unmarshal config file: %w", err)
	}
	return values, nil
}

// FromValues wraps already populated values, validating them first.
func FromValues(values Values) (Config, error) {
	if err := values.Validate(); err != nil {
		return nil, err
	}
	return mainConfig{values: values}, nil
}

// Validate checks the struct tags on Values
func (v Values) Validate() error {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func (c mainConfig) GetAppName() string {
	return c.values.AppName
}

func (c mainConfig) GetEnv() string {
	return c.values.Env
}

func (c mainConfig) GetLogLevel() string {
	return c.values.LogLevel
}

func (c mainConfig) GetDataFolder() string {
	return c.values.DataFolder
}
