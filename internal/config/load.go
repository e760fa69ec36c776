package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "CLINIC"

var keys = []string{
	"registry.max_open_per_owner",
	"registry.mutation_policy",
	"store.driver",
	"store.path",
	"store.database_url",
	"log.level",
	"log.format",
}

// Load читает конфигурацию: значения по умолчанию, затем файл (если path задан),
// затем переменные окружения CLINIC_<SECTION>_<KEY>, у которых приоритет выше.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("registry.max_open_per_owner", 5)
	v.SetDefault("registry.mutation_policy", "any_state")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal видит переменные окружения только для явно привязанных ключей
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
