package config

import (
	"log"
	"os"

	"pulse/pkg/logger"
	"pulse/pkg/util"
)

// Config carries every knob the server and worker processes read from the
// environment. It is built once in cmd/* and handed to constructors; nothing
// below main reads the environment directly.
type Config struct {
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	APIPrefix string `env:"API_PREFIX"`
	RateLimit string `env:"RATE_LIMIT"`

	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	JobChannel    string `env:"JOB_CHANNEL"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL"`
	ChatModel       string `env:"CHAT_MODEL"`
	ClassifierModel string `env:"CLASSIFIER_MODEL"`
	WhisperModel    string `env:"WHISPER_MODEL"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	TMDBAPIKey          string `env:"TMDB_API_KEY"`
	TMDBRegion          string `env:"TMDB_REGION"`

	AuthURL     string `env:"AUTH_URL"`
	AuthAnonKey string `env:"AUTH_ANON_KEY"`

	// ServiceKey authenticates the worker's transcription callback.
	ServiceKey string `env:"BACKEND_SERVICE_KEY"`
	// BackendURL is where the worker posts callbacks.
	BackendURL string `env:"BACKEND_URL"`

	Log logger.LogConfig
}

// Load reads the process environment (plus optional .env files) into a Config.
func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	return &Config{
		Addr:      util.GetEnvDefault("ADDR", ":8000"),
		Mode:      util.GetEnvDefault("MODE", "debug"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		RateLimit: util.GetEnvDefault("RATE_LIMIT", "120-M"),

		DBDriver: util.GetEnv("DB_DRIVER"),
		DSN:      util.GetEnv("DSN"),

		RedisAddr:     util.GetEnv("REDIS_ADDR"),
		RedisPassword: util.GetEnv("REDIS_PASSWORD"),
		RedisDB:       int(util.GetIntEnv("REDIS_DB")),
		JobChannel:    util.GetEnvDefault("JOB_CHANNEL", "pulse:transcribe_jobs"),

		MinioEndpoint:  util.GetEnv("MINIO_ENDPOINT"),
		MinioAccessKey: util.GetEnv("MINIO_ACCESS_KEY"),
		MinioSecretKey: util.GetEnv("MINIO_SECRET_KEY"),
		MinioBucket:    util.GetEnvDefault("MINIO_BUCKET", "pulse-dev"),
		MinioUseSSL:    util.GetBoolEnv("MINIO_USE_SSL"),

		OpenAIAPIKey:    util.GetEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:   util.GetEnv("OPENAI_BASE_URL"),
		ChatModel:       util.GetEnvDefault("CHAT_MODEL", "gpt-4o-mini"),
		ClassifierModel: util.GetEnvDefault("CLASSIFIER_MODEL", "gpt-4o-mini"),
		WhisperModel:    util.GetEnvDefault("WHISPER_MODEL", "whisper-1"),

		SpotifyClientID:     util.GetEnv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: util.GetEnv("SPOTIFY_CLIENT_SECRET"),
		TMDBAPIKey:          util.GetEnv("TMDB_API_KEY"),
		TMDBRegion:          util.GetEnvDefault("TMDB_REGION", "IN"),

		AuthURL:     util.GetEnv("AUTH_URL"),
		AuthAnonKey: util.GetEnv("AUTH_ANON_KEY"),

		ServiceKey: util.GetEnv("BACKEND_SERVICE_KEY"),
		BackendURL: util.GetEnvDefault("BACKEND_URL", "http://localhost:8000"),

		Log: logger.LogConfig{
			Level:      util.GetEnvDefault("LOG_LEVEL", "info"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
	}, nil
}
