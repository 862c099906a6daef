package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	DatabaseURI        string
	DBHost             string
	DBPort             string
	DBUser             string
	DBPassword         string
	DBName             string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Slot pool configuration
	PoolSize           int // number of permanent link slots seeded at bootstrap
	FeaturedCount      int // slots 1..FeaturedCount are the storefront "featured" band
	SweepIntervalSec   int // rotation/expiry sweep cadence
	ScoreIntervalSec   int // batch score recompute cadence
	ListingCacheTTLSec int // storefront listing cache TTL, seconds
	// Scoring weights
	ScoreEngagementWeight float64 // share of the score driven by contact/share rate
	ScoreAttentionWeight  float64 // share driven by dwell time and non-bounce
	ScoreClickWeight      float64 // whatsapp clicks vs shares inside engagement
	ScoreDwellCapSec      int     // dwell seconds treated as full attention
	// Product catalog collaborator
	CatalogWebhookURL string // notified on assign/reclaim so product status follows
	CatalogTimeoutSec int
	// Redis for caching/counters
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration from environment variables. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)

	applyDefaults(&cfg)

	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	dec := json.NewDecoder(f)
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	// Helper to read string/int/bool/float safely
	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			case json.Number:
				i, _ := t.Int64()
				return int(i)
			}
		}
		return 0
	}
	getFloat := func(m map[string]any, key string) float64 {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return t
			case int:
				return float64(t)
			case json.Number:
				f, _ := t.Float64()
				return f
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		if v := getString(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := getString(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lk, ok := raw["links"].(map[string]any); ok {
		if v := getInt(lk, "PoolSize"); v != 0 {
			out.PoolSize = v
		}
		if v := getInt(lk, "FeaturedCount"); v != 0 {
			out.FeaturedCount = v
		}
		if v := getInt(lk, "SweepIntervalSec"); v != 0 {
			out.SweepIntervalSec = v
		}
		if v := getInt(lk, "ScoreIntervalSec"); v != 0 {
			out.ScoreIntervalSec = v
		}
		if v := getInt(lk, "ListingCacheTTLSec"); v != 0 {
			out.ListingCacheTTLSec = v
		}
	}

	if sc, ok := raw["scoring"].(map[string]any); ok {
		if v := getFloat(sc, "EngagementWeight"); v != 0 {
			out.ScoreEngagementWeight = v
		}
		if v := getFloat(sc, "AttentionWeight"); v != 0 {
			out.ScoreAttentionWeight = v
		}
		if v := getFloat(sc, "ClickWeight"); v != 0 {
			out.ScoreClickWeight = v
		}
		if v := getInt(sc, "DwellCapSec"); v != 0 {
			out.ScoreDwellCapSec = v
		}
	}

	if cat, ok := raw["catalog"].(map[string]any); ok {
		out.CatalogWebhookURL = getString(cat, "WebhookURL")
		if v := getInt(cat, "TimeoutSec"); v != 0 {
			out.CatalogTimeoutSec = v
		}
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "permalink"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 120
	}
	if c.FeaturedCount == 0 {
		c.FeaturedCount = 12
	}
	if c.SweepIntervalSec == 0 {
		c.SweepIntervalSec = 180
	}
	if c.ScoreIntervalSec == 0 {
		c.ScoreIntervalSec = 300
	}
	if c.ListingCacheTTLSec == 0 {
		c.ListingCacheTTLSec = 300
	}
	if c.ScoreEngagementWeight == 0 {
		c.ScoreEngagementWeight = 0.7
	}
	if c.ScoreAttentionWeight == 0 {
		c.ScoreAttentionWeight = 0.3
	}
	if c.ScoreClickWeight == 0 {
		c.ScoreClickWeight = 0.75
	}
	if c.ScoreDwellCapSec == 0 {
		c.ScoreDwellCapSec = 180
	}
	if c.CatalogTimeoutSec == 0 {
		c.CatalogTimeoutSec = 5
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("LINK_POOL_SIZE", ""); v != "" {
		c.PoolSize = mustParseInt(v)
	}
	if v := getEnv("LINK_FEATURED_COUNT", ""); v != "" {
		c.FeaturedCount = mustParseInt(v)
	}
	if v := getEnv("SWEEP_INTERVAL_SEC", ""); v != "" {
		c.SweepIntervalSec = mustParseInt(v)
	}
	if v := getEnv("SCORE_INTERVAL_SEC", ""); v != "" {
		c.ScoreIntervalSec = mustParseInt(v)
	}
	if v := getEnv("LISTING_CACHE_TTL_SEC", ""); v != "" {
		c.ListingCacheTTLSec = mustParseInt(v)
	}
	if v := getEnv("SCORE_ENGAGEMENT_WEIGHT", ""); v != "" {
		c.ScoreEngagementWeight = mustParseFloat(v)
	}
	if v := getEnv("SCORE_ATTENTION_WEIGHT", ""); v != "" {
		c.ScoreAttentionWeight = mustParseFloat(v)
	}
	if v := getEnv("SCORE_CLICK_WEIGHT", ""); v != "" {
		c.ScoreClickWeight = mustParseFloat(v)
	}
	if v := getEnv("SCORE_DWELL_CAP_SEC", ""); v != "" {
		c.ScoreDwellCapSec = mustParseInt(v)
	}
	if v := getEnv("CATALOG_WEBHOOK_URL", ""); v != "" {
		c.CatalogWebhookURL = v
	}
	if v := getEnv("CATALOG_TIMEOUT_SEC", ""); v != "" {
		c.CatalogTimeoutSec = mustParseInt(v)
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true" || v == "1"
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func mustParseFloat(val string) float64 {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Fatalf("invalid float value %s: %v", val, err)
	}
	return f
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
