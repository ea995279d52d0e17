package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RunMigrations         bool
	MongoURL              string
	MongoDatabase         string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	LookupCacheTTLSeconds int
	AuthSecret            string
	AccessTokenTTLMinutes int
	DefaultBranchID       int64
	DefaultVATPercentage  float64
}

// Load reads the environment, after an optional .env file in the working
// directory. Unparseable numbers fall back to their defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("LOOKUP_CACHE_TTL_SECONDS", "300"))
	if err != nil || ttl < 1 {
		ttl = 300
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	branchID, err := strconv.ParseInt(getEnv("DEFAULT_BRANCH_ID", "1"), 10, 64)
	if err != nil || branchID < 1 {
		branchID = 1
	}
	vat, err := strconv.ParseFloat(getEnv("DEFAULT_VAT_PERCENTAGE", "0"), 64)
	if err != nil || vat < 0 {
		vat = 0
	}
	runMigrations, err := strconv.ParseBool(getEnv("RUN_MIGRATIONS", "true"))
	if err != nil {
		runMigrations = true
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RunMigrations:         runMigrations,
		MongoURL:              os.Getenv("MONGO_URL"),
		MongoDatabase:         getEnv("MONGO_DATABASE", "cargodesk"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		LookupCacheTTLSeconds: ttl,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		DefaultBranchID:       branchID,
		DefaultVATPercentage:  vat,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// StoreKind names the repository the server will use.
func (c Config) StoreKind() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.MongoURL != "":
		return "mongo"
	default:
		return "memory"
	}
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
