package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SyncConfig bounds the candidate volume of one sync pass.
type SyncConfig struct {
	Senders         []string
	SubjectKeywords []string
	RecencyDays     int
	MaxResults      int64
	PassTimeout     time.Duration
	LockTTL         time.Duration
}

func LoadSyncConfig() *SyncConfig {
	return &SyncConfig{
		Senders:         getEnvAsList("SYNC_SENDERS", []string{"bca.co.id", "klikbca.com", "bankmandiri.co.id", "bni.co.id", "gopay.co.id", "ovo.id"}),
		SubjectKeywords: getEnvAsList("SYNC_SUBJECT_KEYWORDS", []string{"transaksi", "transaction", "payment", "pembayaran", "transfer"}),
		RecencyDays:     getEnvAsInt("SYNC_RECENCY_DAYS", 30),
		MaxResults:      int64(getEnvAsInt("SYNC_MAX_RESULTS", 100)),
		PassTimeout:     getEnvAsDuration("SYNC_PASS_TIMEOUT", 2*time.Minute),
		LockTTL:         getEnvAsDuration("SYNC_LOCK_TTL", 5*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
