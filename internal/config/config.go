package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// API describes the HTTP server and the retrieval pipeline behind it.
type API struct {
	Common
	BindAddr      string
	WriteTimeout  time.Duration
	DefaultPage   int
	MaxPage       int
	AllowedOrigin string
	AccessKey     string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	ExaKey            string
	ExaBaseURL        string
	ExaTimeout        time.Duration
	NumResults        int
	SearchConcurrency int
	KeywordsFile      string

	// Empty KafkaBrokers disables retrieval event publishing.
	KafkaBrokers []string
	KafkaTopic   string
}

// Archiver holds configuration for the Kafka -> Elasticsearch archiver.
type Archiver struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	TermLimit      int
	TermMinLength  int
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "retrievals"),
	}
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:        loadCommon(),
		BindAddr:      getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		WriteTimeout:  getDuration("API_WRITE_TIMEOUT", "2m"),
		DefaultPage:   getInt("API_PAGE_SIZE", 20),
		MaxPage:       getInt("API_MAX_PAGE_SIZE", 100),
		AllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		AccessKey:     getEnv("BRAIN_API_KEY", ""),

		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o"),

		ExaKey:            getEnv("EXASEARCH_API_KEY", ""),
		ExaBaseURL:        strings.TrimRight(getEnv("EXA_BASE_URL", "https://api.exa.ai"), "/"),
		ExaTimeout:        getDuration("EXA_TIMEOUT", "15s"),
		NumResults:        getInt("SEARCH_NUM_RESULTS", 5),
		SearchConcurrency: getInt("SEARCH_CONCURRENCY", 4),
		KeywordsFile:      getEnv("KEYWORDS_FILE", ""),

		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "retrievals"),
	}

	if c.ExaKey == "" {
		return nil, fmt.Errorf("EXASEARCH_API_KEY must be set")
	}
	if c.NumResults <= 0 {
		return nil, fmt.Errorf("SEARCH_NUM_RESULTS must be positive")
	}
	if c.SearchConcurrency <= 0 {
		return nil, fmt.Errorf("SEARCH_CONCURRENCY must be positive")
	}
	if c.ExaTimeout <= 0 {
		return nil, fmt.Errorf("EXA_TIMEOUT must be positive")
	}
	if c.WriteTimeout <= 0 {
		return nil, fmt.Errorf("API_WRITE_TIMEOUT must be positive")
	}
	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// PublishingEnabled reports whether retrieval events should go to Kafka.
func (c *API) PublishingEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// LoadArchiver builds an Archiver config from environment variables.
func LoadArchiver() (*Archiver, error) {
	c := &Archiver{
		Common:         loadCommon(),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "retrievals"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "retrieval-archiver"),
		TermLimit:      getInt("ARCHIVER_TERM_LIMIT", 8),
		TermMinLength:  getInt("ARCHIVER_TERM_MIN_LEN", 4),
		DedupeCapacity: getInt("ARCHIVER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("ARCHIVER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("ARCHIVER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("ARCHIVER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("ARCHIVER_DEDUPE_CAPACITY must be positive")
	}
	if c.TermLimit <= 0 {
		return nil, fmt.Errorf("ARCHIVER_TERM_LIMIT must be positive")
	}
	if c.TermMinLength < 0 {
		return nil, fmt.Errorf("ARCHIVER_TERM_MIN_LEN cannot be negative")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "168h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
