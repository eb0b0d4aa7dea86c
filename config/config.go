package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort        string
	DBPath            string
	AgentTimeout      time.Duration
	LeaseTTL          time.Duration
	QueueSize         int
	Workers           int
	SweepInterval     time.Duration
	SessionTTL        time.Duration
	RegisterPerMinute int
	LoginPerMinute    int
	TurnsPerMinute    int
	RateLimitIdle     time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	return &Config{
		ServerPort:        getenv("SERVER_PORT", ":8080"),
		DBPath:            getenv("DB_PATH", "./gamehub.db"),
		AgentTimeout:      getduration("AGENT_TIMEOUT", 30*time.Second),
		LeaseTTL:          getduration("AGENT_LEASE_TTL", 60*time.Second),
		QueueSize:         getint("TASK_QUEUE_SIZE", 256),
		Workers:           getint("AGENT_WORKERS", 4),
		SweepInterval:     getduration("AGENT_SWEEP_INTERVAL", 15*time.Second),
		SessionTTL:        getduration("SESSION_TTL", 7*24*time.Hour),
		RegisterPerMinute: getint("REGISTER_PER_MINUTE", 3),
		LoginPerMinute:    getint("LOGIN_PER_MINUTE", 5),
		TurnsPerMinute:    getint("TURNS_PER_MINUTE", 60),
		RateLimitIdle:     getduration("RATE_LIMIT_IDLE", 10*time.Minute),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %v", key, v, def)
		return def
	}
	return d
}
