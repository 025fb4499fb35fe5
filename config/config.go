package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is read once at startup from the environment (and .env when
// present).
type Config struct {
	Env              string
	Port             string
	StoreDriver      string
	SeedData         bool
	MongoURI         string
	MongoDatabase    string
	RedisAddress     string
	RedisPassword    string
	IssueLimitQueue  string
	IssueDailyLimit  int
	JWTSecret        string
	Domain           string
	CORSOrigins      []string
	VoiceNoteTimeout time.Duration
	MaxUploadBytes   int64
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}

func envBool(k string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}

func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	var origins []string
	for _, o := range strings.Split(env("CORS_ORIGINS", "http://localhost:3000"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Env:              env("GO_ENV", "dev"),
		Port:             env("PORT", "8080"),
		StoreDriver:      env("STORE_DRIVER", "memory"),
		SeedData:         envBool("SEED_DATA", true),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDatabase:    env("MONGODB_DATABASE", "civicreport"),
		RedisAddress:     os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		IssueLimitQueue:  env("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue-limit"),
		IssueDailyLimit:  envInt("ISSUE_DAILY_LIMIT", 10),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		Domain:           os.Getenv("DOMAIN"),
		CORSOrigins:      origins,
		VoiceNoteTimeout: envDuration("VOICE_TIMEOUT", 30*time.Second),
		MaxUploadBytes:   int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
	}
}
