package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string

	JWTKey     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JudgeQueueName string

	LogLevel  string
	LogFormat string
	LogFile   string

	CORSAllowedOrigins []string
	DataDir            string

	MockJudgeEnabled bool
	MockJudgeVerdict string

	SubmissionListLimit int
}

// Load reads .env (if any) and the process environment. Malformed values
// are reported instead of silently falling back to defaults.
func Load() (*Config, error) {
	// A missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		APIPort:             getEnv("API_PORT", "8080"),
		JWTKey:              []byte(getEnv("JWT_SECRET_KEY", "")),
		AccessTTL:           time.Duration(getEnvAsInt("JWT_ACCESS_TTL_MINUTES", 20, &errs)) * time.Minute,
		RefreshTTL:          time.Duration(getEnvAsInt("JWT_REFRESH_TTL_HOURS", 168, &errs)) * time.Hour,
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getEnv("DB_PORT", "5432"),
		DBUser:              getEnv("DB_USER", "judge"),
		DBPassword:          getEnv("DB_PASSWORD", "judge"),
		DBName:              getEnv("DB_NAME", "judge_zone"),
		DBSslMode:           getEnv("DB_SSLMODE", "disable"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvAsInt("REDIS_DB", 0, &errs),
		JudgeQueueName:      getEnv("JUDGE_QUEUE_NAME", "JUDGE_QUEUE"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		LogFile:             getEnv("LOG_FILE", ""),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DataDir:             getEnv("DATA_DIR", "./data"),
		MockJudgeEnabled:    getEnvAsBool("MOCK_JUDGE_ENABLED", false, &errs),
		MockJudgeVerdict:    getEnv("MOCK_JUDGE_VERDICT", "AC"),
		SubmissionListLimit: getEnvAsInt("SUBMISSION_LIST_LIMIT", 1000, &errs),
	}

	if len(cfg.JWTKey) == 0 {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config.Load: %w", errors.Join(errs...))
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int, errs *[]error) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool, errs *[]error) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return value
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
