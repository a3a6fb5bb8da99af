package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Trending  TrendingConfig  `mapstructure:"trending"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
	}
	return c.Path
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // local, jina
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

type SearchConfig struct {
	TextWeight       float64 `mapstructure:"text_weight"`
	VectorWeight     float64 `mapstructure:"vector_weight"`
	MinSimilarity    float64 `mapstructure:"min_similarity"`
	VectorCandidates int     `mapstructure:"vector_candidates"` // cap on embedded-candidate pulls
	FacetCandidates  int     `mapstructure:"facet_candidates"`  // cap on the filtered set scanned for facets
}

type RecommendConfig struct {
	// NeighborThreshold is the number of commonly rated titles two users
	// must share to count as neighbors. Policy constant, not user-facing.
	NeighborThreshold int `mapstructure:"neighbor_threshold"`
	NeighborCap       int `mapstructure:"neighbor_cap"`
	CandidateCap      int `mapstructure:"candidate_cap"`

	// Cold start gate: "obviously good" titles only.
	ColdStartMinRating float64 `mapstructure:"cold_start_min_rating"`
	ColdStartMinVotes  int64   `mapstructure:"cold_start_min_votes"`
}

type TrendingConfig struct {
	// Multiplier scales weekly view counts into the trending score.
	Multiplier float64       `mapstructure:"multiplier"`
	WindowDays int           `mapstructure:"window_days"`
	MinRefresh time.Duration `mapstructure:"min_refresh"` // throttle between lazy recomputes
}

type CacheConfig struct {
	SearchTTL       time.Duration `mapstructure:"search_ttl"`
	AutocompleteTTL time.Duration `mapstructure:"autocomplete_ttl"`
	AnalyticsTTL    time.Duration `mapstructure:"analytics_ttl"`
	SearchCapacity  int           `mapstructure:"search_capacity"`
}

type AnalyticsConfig struct {
	QueryLogBuffer int `mapstructure:"query_log_buffer"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/cinesearch.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "posters")
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 256)
	v.SetDefault("search.text_weight", 0.4)
	v.SetDefault("search.vector_weight", 0.6)
	v.SetDefault("search.min_similarity", 0.0)
	v.SetDefault("search.vector_candidates", 500)
	v.SetDefault("search.facet_candidates", 2000)
	v.SetDefault("recommend.neighbor_threshold", 3)
	v.SetDefault("recommend.neighbor_cap", 200)
	v.SetDefault("recommend.candidate_cap", 500)
	v.SetDefault("recommend.cold_start_min_rating", 7.0)
	v.SetDefault("recommend.cold_start_min_votes", 10000)
	v.SetDefault("trending.multiplier", 1.5)
	v.SetDefault("trending.window_days", 7)
	v.SetDefault("trending.min_refresh", 5*time.Minute)
	v.SetDefault("cache.search_ttl", 5*time.Minute)
	v.SetDefault("cache.autocomplete_ttl", 30*time.Minute)
	v.SetDefault("cache.analytics_ttl", time.Hour)
	v.SetDefault("cache.search_capacity", 1000)
	v.SetDefault("analytics.query_log_buffer", 256)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("embedding.provider", "EMBEDDING_PROVIDER")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
