package config

import (
	"flag"
	"os"
	"time"
)

// Config содержит конфигурацию приложения.
type Config struct {
	RunAddress      string
	DatabaseURI     string
	JWTSecret       string
	TokenExpiration time.Duration
	// DriverTimeout ограничивает каждый сетевой вызов облачного бекенда.
	DriverTimeout time.Duration
	// BuildPollInterval период опроса бекендов о создаваемых серверах.
	BuildPollInterval time.Duration
}

// Load загружает конфигурацию из флагов командной строки и переменных окружения.
// Приоритет: переменные окружения > флаги > значения по умолчанию.
func Load() *Config {
	cfg := &Config{}

	var tokenExp, driverTimeout, pollInterval string
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "адрес и порт запуска сервиса")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "строка подключения к PostgreSQL")
	flag.StringVar(&tokenExp, "t", "", "время жизни JWT токена")
	flag.StringVar(&driverTimeout, "r", "", "таймаут запросов к облачным бекендам")
	flag.StringVar(&pollInterval, "i", "", "период опроса статуса создаваемых серверов")
	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		cfg.RunAddress = envRunAddr
	}
	if envDBURI := os.Getenv("DATABASE_URI"); envDBURI != "" {
		cfg.DatabaseURI = envDBURI
	}
	if envTokenExp := os.Getenv("TOKEN_EXPIRATION"); envTokenExp != "" {
		tokenExp = envTokenExp
	}
	if envTimeout := os.Getenv("DRIVER_TIMEOUT"); envTimeout != "" {
		driverTimeout = envTimeout
	}
	if envInterval := os.Getenv("BUILD_POLL_INTERVAL"); envInterval != "" {
		pollInterval = envInterval
	}

	// JWT секрет
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "default-secret-change-in-production"
	}

	// Некорректная длительность откатывается к значению по умолчанию
	cfg.TokenExpiration = parseDuration(tokenExp, 24*time.Hour)
	cfg.DriverTimeout = parseDuration(driverTimeout, 30*time.Second)
	cfg.BuildPollInterval = parseDuration(pollInterval, 30*time.Second)

	return cfg
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
