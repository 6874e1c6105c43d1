package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort           int           `mapstructure:"APP_PORT"`
	StorageDriver     string        `mapstructure:"STORAGE_DRIVER"`
	DatabasePath      string        `mapstructure:"DATABASE_PATH"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	OpenAIAPIKey      string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel       string        `mapstructure:"OPENAI_MODEL"`
	SystemPrompt      string        `mapstructure:"SYSTEM_PROMPT"`
	Temperature       float64       `mapstructure:"TEMPERATURE"`
	MaxTokens         int           `mapstructure:"MAX_TOKENS"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	ErrorDismissDelay time.Duration `mapstructure:"ERROR_DISMISS_DELAY"`
	CancelOnNavigate  bool          `mapstructure:"CANCEL_ON_NAVIGATE"`
	DraftsPath        string        `mapstructure:"DRAFTS_PATH"`
}

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

const DefaultSystemPrompt = "You are Servimatt, a helpful AI assistant. Provide clear, concise, and professional assistance. Be friendly, solution-oriented, and helpful with any questions or tasks."

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("STORAGE_DRIVER", DriverSQLite)
	viper.SetDefault("DATABASE_PATH", "/data/servimatt.db")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("OPENAI_API_KEY", "")
	viper.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o")
	viper.SetDefault("SYSTEM_PROMPT", DefaultSystemPrompt)
	viper.SetDefault("TEMPERATURE", 0.7)
	viper.SetDefault("MAX_TOKENS", 1000)
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("ERROR_DISMISS_DELAY", "5s")
	viper.SetDefault("CANCEL_ON_NAVIGATE", false)
	viper.SetDefault("DRAFTS_PATH", "")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
