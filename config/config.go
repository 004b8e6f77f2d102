package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	// HTTP 服务
	ServerAddr string

	// 日志
	LogLevel string
	LogPath  string

	// 解析时的默认语言
	DefaultMainLang         string
	DefaultTranslationLang  string
	DefaultRomanizationLang string

	// 音节平滑参数
	SmoothingFactor         float64
	SmoothingDurThresholdMs int64
	SmoothingGapThresholdMs int64
	SmoothingIterations     int

	// 单次请求体的大小上限（字节）
	MaxRequestBytes int64
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvInt64 gets an environment variable as int64 or returns a default value.
func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),

		DefaultMainLang:         getEnv("DEFAULT_MAIN_LANG", ""),
		DefaultTranslationLang:  getEnv("DEFAULT_TRANSLATION_LANG", ""),
		DefaultRomanizationLang: getEnv("DEFAULT_ROMANIZATION_LANG", ""),

		SmoothingFactor:         getEnvFloat("SMOOTHING_FACTOR", 0.15),
		SmoothingDurThresholdMs: getEnvInt64("SMOOTHING_DUR_THRESHOLD_MS", 50),
		SmoothingGapThresholdMs: getEnvInt64("SMOOTHING_GAP_THRESHOLD_MS", 100),
		SmoothingIterations:     getEnvInt("SMOOTHING_ITERATIONS", 5),

		MaxRequestBytes: getEnvInt64("MAX_REQUEST_BYTES", 10<<20), // 默认 10MB
	}
}
