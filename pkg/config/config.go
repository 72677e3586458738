package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Cache drivers supported for the curriculum cache.
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	Academic       AcademicConfig
	Curriculum     CurriculumConfig
	Calendar       CalendarConfig
	Recommendation RecommendationConfig
	Advisor        AdvisorConfig
	Metrics        MetricsConfig
	Exports        ExportsConfig
	CORS           CORSConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// AcademicConfig points to the academic rules file (ceilings, programs, catalogues).
type AcademicConfig struct {
	RulesFile string
}

// CurriculumConfig tunes the curriculum resolver cache.
type CurriculumConfig struct {
	CacheDriver string
	CacheTTL    time.Duration
	CacheSize   int
}

// CalendarConfig tunes the active period cache and the late enrollment grace.
type CalendarConfig struct {
	CacheTTL            time.Duration
	LateEnrollmentGrace time.Duration
}

// RecommendationConfig caps the suggestion lists.
type RecommendationConfig struct {
	PriorityLimit int
	OptionalLimit int
}

// AdvisorConfig bounds the advisee risk fan-out.
type AdvisorConfig struct {
	RiskConcurrency int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// ExportsConfig toggles CSV/PDF export endpoints.
type ExportsConfig struct {
	Enabled bool
}

// CORSConfig lists browser origins allowed to call the API. Empty allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Academic = AcademicConfig{RulesFile: v.GetString("ACADEMIC_RULES_FILE")}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("CURRICULUM_CACHE_DRIVER")))
	if driver != CacheDriverRedis {
		driver = CacheDriverMemory
	}
	cacheSize := v.GetInt("CURRICULUM_CACHE_SIZE")
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cfg.Curriculum = CurriculumConfig{
		CacheDriver: driver,
		CacheTTL:    parseDuration(v.GetString("CURRICULUM_CACHE_TTL"), time.Hour),
		CacheSize:   cacheSize,
	}

	cfg.Calendar = CalendarConfig{
		CacheTTL:            parseDuration(v.GetString("CALENDAR_CACHE_TTL"), 5*time.Second),
		LateEnrollmentGrace: parseDuration(v.GetString("LATE_ENROLLMENT_GRACE"), 14*24*time.Hour),
	}

	cfg.Recommendation = RecommendationConfig{
		PriorityLimit: positiveOr(v.GetInt("RECOMMENDATION_PRIORITY_LIMIT"), 10),
		OptionalLimit: positiveOr(v.GetInt("RECOMMENDATION_OPTIONAL_LIMIT"), 5),
	}

	cfg.Advisor = AdvisorConfig{RiskConcurrency: positiveOr(v.GetInt("ADVISOR_RISK_CONCURRENCY"), 4)}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}
	cfg.Exports = ExportsConfig{Enabled: v.GetBool("ENABLE_EXPORTS")}
	cfg.CORS = CORSConfig{AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS"))}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "siakad_krs")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ACADEMIC_RULES_FILE", "./config/academic_rules.yaml")
	v.SetDefault("CURRICULUM_CACHE_DRIVER", CacheDriverMemory)
	v.SetDefault("CURRICULUM_CACHE_TTL", "1h")
	v.SetDefault("CURRICULUM_CACHE_SIZE", 256)
	v.SetDefault("CALENDAR_CACHE_TTL", "5s")
	v.SetDefault("LATE_ENROLLMENT_GRACE", "336h")

	v.SetDefault("RECOMMENDATION_PRIORITY_LIMIT", 10)
	v.SetDefault("RECOMMENDATION_OPTIONAL_LIMIT", 5)
	v.SetDefault("ADVISOR_RISK_CONCURRENCY", 4)

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
