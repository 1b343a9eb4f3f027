package config

import (
	"lojavox/pkg/logger"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	OpenAI struct {
		BaseURL            string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
		APIKey             string `yaml:"api_key" env:"OPENAI_API_KEY"`
		ChatModel          string `yaml:"chat_model" env:"OPENAI_CHAT_MODEL" env-default:"gpt-4o"`
		VisionModel        string `yaml:"vision_model" env:"OPENAI_VISION_MODEL" env-default:"gpt-4o"`
		TranscriptionModel string `yaml:"transcription_model" env:"OPENAI_TRANSCRIPTION_MODEL" env-default:"whisper-1"`
	} `yaml:"openai"`

	RabbitMQ struct {
		URL string `yaml:"url" env:"RABBITMQ_URL"`
	} `yaml:"rabbitmq"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"postgres"`

	S3 struct {
		Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT"`
		Region        string `yaml:"region" env:"S3_REGION" env-default:"eu-west-1"`
		AccessKey     string `yaml:"access_key" env:"S3_ACCESS_KEY"`
		SecretKey     string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		Bucket        string `yaml:"bucket" env:"S3_BUCKET"`
		PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	} `yaml:"s3"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	} `yaml:"redis"`

	Worker struct {
		Concurrency   int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"4"`
		PhotoPoolSize int `yaml:"photo_pool_size" env:"PHOTO_POOL_SIZE" env-default:"4"`
	} `yaml:"worker"`
}

func LoadConfig() (*Config, error) {
	// Load .env file
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadConfig("configs/config.yaml", &cfg); err != nil {
		return nil, err
	}

	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return nil, err
	}

	logger.Info("Config loaded successfully")
	return &cfg, nil
}
