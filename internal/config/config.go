// Package config loads the server settings.
//
// Sources, later ones win: built-in defaults, the YAML file named by
// BOOKSHELF_CONFIG, then environment variables (a .env file in the working
// directory is loaded into the environment first when present).
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/vvakame/bookshelf/internal/log"
)

const (
	DefaultPort      = "4000"
	DefaultQueryPath = "/query"
)

type Config struct {
	Port          string `yaml:"port"`
	QueryPath     string `yaml:"queryPath"`
	Playground    bool   `yaml:"playground"`
	Introspection bool   `yaml:"introspection"`
	// ComplexityLimit rejects queries above this complexity. 0 disables the check.
	ComplexityLimit int `yaml:"complexityLimit"`
}

func Default() *Config {
	return &Config{
		Port:          DefaultPort,
		QueryPath:     DefaultQueryPath,
		Playground:    true,
		Introspection: true,
	}
}

// Load builds the configuration. envFiles defaults to ".env"; missing env files are ignored.
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	logger := log.FromContext(ctx)

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, envFile := range envFiles {
		err := godotenv.Load(envFile)
		if errors.Is(err, fs.ErrNotExist) {
			logger.V(1).Info("env file not found", "file", envFile)
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		logger.Info("env file loaded", "file", envFile)
	}

	cfg := Default()

	if path := os.Getenv("BOOKSHELF_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		err = yaml.Unmarshal(b, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		logger.Info("config file loaded", "file", path)
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("BOOKSHELF_QUERY_PATH"); v != "" {
		cfg.QueryPath = v
	}
	var err error
	cfg.Playground, err = getEnvBool("BOOKSHELF_PLAYGROUND", cfg.Playground)
	if err != nil {
		return nil, err
	}
	cfg.Introspection, err = getEnvBool("BOOKSHELF_INTROSPECTION", cfg.Introspection)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("BOOKSHELF_COMPLEXITY_LIMIT"); v != "" {
		cfg.ComplexityLimit, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("BOOKSHELF_COMPLEXITY_LIMIT: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port: %q", cfg.Port)
	}
	if !strings.HasPrefix(cfg.QueryPath, "/") {
		return fmt.Errorf("query path must start with /: %q", cfg.QueryPath)
	}
	if cfg.QueryPath == "/" && cfg.Playground {
		return errors.New("query path / collides with the playground")
	}
	if cfg.ComplexityLimit < 0 {
		return fmt.Errorf("invalid complexity limit: %d", cfg.ComplexityLimit)
	}
	return nil
}

// Addr is the listen address.
func (cfg *Config) Addr() string {
	return ":" + cfg.Port
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
