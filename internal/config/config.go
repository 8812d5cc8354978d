package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Database DatabaseConfig
	Telegram TelegramConfig
	Fetch    FetchConfig
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// DSN builds the postgres connection string for pgxpool.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// TelegramConfig defines the alert channel credentials. Both fields empty
// means alerting is disabled.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// FetchConfig defines tunables for outbound exchange requests.
type FetchConfig struct {
	TimeoutSeconds        int `mapstructure:"timeout_seconds"`
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
	RetryAttempts         int `mapstructure:"retry_attempts"`
	RetryBaseDelayMS      int `mapstructure:"retry_base_delay_ms"`
}

// Timeout returns the total per-request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// ConnectTimeout returns the TCP connect timeout.
func (f FetchConfig) ConnectTimeout() time.Duration {
	return time.Duration(f.ConnectTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff delay; it doubles per attempt.
func (f FetchConfig) RetryBaseDelay() time.Duration {
	return time.Duration(f.RetryBaseDelayMS) * time.Millisecond
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("log_level", "info")
	viper.SetDefault("database.host", "127.0.0.1")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("fetch.timeout_seconds", 10)
	viper.SetDefault("fetch.connect_timeout_seconds", 5)
	viper.SetDefault("fetch.retry_attempts", 3)
	viper.SetDefault("fetch.retry_base_delay_ms", 1000)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
