// Package config загружает настройки реестра из файла и переменных окружения CLINIC_*.
package config

// Config все настройки приложения
type Config struct {
	Registry RegistryConfig `mapstructure:"registry" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	Log      LogConfig      `mapstructure:"log" validate:"required"`
}

// RegistryConfig правила реестра
type RegistryConfig struct {
	MaxOpenPerOwner int    `mapstructure:"max_open_per_owner" validate:"required,gt=0"`
	MutationPolicy  string `mapstructure:"mutation_policy" validate:"required,oneof=any_state open_only"`
}

// StoreConfig где хранится снимок между запусками
type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"required,oneof=memory jsonfile postgres"`
	Path        string `mapstructure:"path" validate:"required_if=Driver jsonfile"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Driver postgres"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}
