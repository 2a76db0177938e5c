package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Database     Database
	Engine       Engine
	GeminiApiKey string
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Engine holds the tunables of the attempt engine itself.
type Engine struct {
	AutosaveIntervalSeconds   int
	ForcedSubmitRetries       int
	ForcedSubmitBackoffMillis int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AUTOSAVE_INTERVAL_SECONDS", 30)
	viper.SetDefault("FORCED_SUBMIT_RETRIES", 5)
	viper.SetDefault("FORCED_SUBMIT_BACKOFF_MILLIS", 2000)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Engine.AutosaveIntervalSeconds = viper.GetInt("AUTOSAVE_INTERVAL_SECONDS")
	config.Engine.ForcedSubmitRetries = viper.GetInt("FORCED_SUBMIT_RETRIES")
	config.Engine.ForcedSubmitBackoffMillis = viper.GetInt("FORCED_SUBMIT_BACKOFF_MILLIS")

	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")

	log.Info().Str("port", config.Server.Port).Str("db_host", config.Database.Host).Msg("Config loaded")
	return &config, nil
}
