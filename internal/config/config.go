// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек клиентского ядра
type Config struct {
	Env              string `yaml:"env" env:"ENV" env-default:"local"`
	BackendConnector `yaml:"backend"`
	LocalStore       `yaml:"local_store"`
	RedisConnection  `yaml:"redis_connection"`
	Premium          `yaml:"premium"`
	Profile          `yaml:"profile"`
}

// BackendConnector структура для настройки подключения к внешнему провайдеру
type BackendConnector struct {
	BaseURL     string        `yaml:"base_url" env:"BACKEND_BASE_URL"`
	APIKey      string        `yaml:"api_key" env:"BACKEND_API_KEY"`
	RealtimeURL string        `yaml:"realtime_url" env:"BACKEND_REALTIME_URL"`
	RedirectURL string        `yaml:"redirect_url"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"10"`
	RateBurst   int           `yaml:"rate_burst" env-default:"20"`
}

// LocalStore структура для настройки локального персистентного хранилища
type LocalStore struct {
	Driver string `yaml:"driver" env-default:"sqlite"` // sqlite, redis или memory
	Path   string `yaml:"path" env-default:"medcampus.db"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// Premium структура для настройки кэша премиум-статуса
type Premium struct {
	TTL time.Duration `yaml:"ttl" env-default:"5m"`
}

// Profile структура для настройки материализации профиля
type Profile struct {
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"1s"`
}

// MustLoad функция для загрузки конфига из файла, указанного в CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
