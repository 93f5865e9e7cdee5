package main

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/timson/worlddb/storage"
)

type ServerConfig struct {
	Host     string `mapstructure:"host" validate:"required,hostname|ip"`
	Port     int    `mapstructure:"port" validate:"min=0,max=65535"` // 0 picks a free port
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=INFO WARNING DEBUG ERROR"`
}

type DatabaseConfig struct {
	Filename  string `mapstructure:"filename" validate:"required"`
	PageSize  int    `mapstructure:"page_size" validate:"min=128,max=65535"`
	PageCache int    `mapstructure:"page_cache" validate:"min=0"`
}

type Config struct {
	Server *ServerConfig   `validate:"required"`
	DB     *DatabaseConfig `validate:"required"`
}

func (cfg *Config) StorageOptions() *storage.Options {
	return storage.DefaultOptions().
		WithPageSize(cfg.DB.PageSize).
		WithPageCacheSize(cfg.DB.PageCache)
}

func initDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 4321)
	viper.SetDefault("server.log_level", "INFO")
	viper.SetDefault("db.filename", "world.db")
	viper.SetDefault("db.page_size", storage.DefaultPageSize)
	viper.SetDefault("db.page_cache", storage.DefaultPageCacheSize)
}

func setupFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Config file (TOML)")
	cmd.PersistentFlags().String("host", "", "Server host")
	cmd.PersistentFlags().Int("port", 0, "Server port, 0 picks a free one")
	cmd.PersistentFlags().String("db", "", "Database filename")
	cmd.PersistentFlags().Int("page-size", 0, "Page size in bytes for new databases")
	cmd.PersistentFlags().String("log", "", "log level")

	_ = viper.BindPFlag("server.host", cmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", cmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("db.filename", cmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("db.page_size", cmd.PersistentFlags().Lookup("page-size"))
	_ = viper.BindPFlag("server.log_level", cmd.PersistentFlags().Lookup("log"))

	viper.SetEnvPrefix("worlddb")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func loadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
	}

	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
