package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	Env      string
	HTTPAddr string

	RedisAddr string
	RedisPass string

	KafkaBrokers    []string
	KafkaAuditTopic string

	// Receipt policy. Snapshot taken once at startup; no per-request
	// settings lookups.
	ReceiptHMACKey  string
	ReceiptTTL      time.Duration
	ReissueLimit    int
	ReceiptBaseURL  string
	PrinterProfile  string
}

func Load() AppConfig {
	cfg := AppConfig{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8031"),

		RedisAddr: getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		KafkaBrokers:    getEnvSlice("KAFKA_BROKERS", []string{"kafka:9092"}),
		KafkaAuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "recharge.audit"),

		ReceiptHMACKey: getEnv("RECEIPT_HMAC_KEY", ""),
		ReceiptTTL:     time.Duration(getEnvInt("RECEIPT_TTL_HOURS", 24)) * time.Hour,
		ReissueLimit:   getEnvInt("RECEIPT_REISSUE_LIMIT", 3),
		ReceiptBaseURL: getEnv("RECEIPT_BASE_URL", "http://localhost:8031/receipt"),
		PrinterProfile: getEnv("PRINTER_PROFILE", "SUNMI_58"),
	}

	// Missing signing key is a fatal startup condition in production, not
	// a per-request error.
	if cfg.ReceiptHMACKey == "" {
		if cfg.Env == "production" {
			log.Fatal("RECEIPT_HMAC_KEY environment variable is required in production")
		}
		cfg.ReceiptHMACKey = "dev-insecure-receipt-key"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}
