package config_test

import (
	"testing"
	"time"

	"github.com/DeafMist/agentic-voice/backend/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIDefaults(t *testing.T) {
	t.Setenv("EXASEARCH_API_KEY", "exa-key")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8080", cfg.BindAddr)
	require.Equal(t, 2*time.Minute, cfg.WriteTimeout)
	require.Equal(t, "gpt-4o", cfg.OpenAIModel)
	require.Empty(t, cfg.OpenAIKey)
	require.Equal(t, "https://api.exa.ai", cfg.ExaBaseURL)
	require.Equal(t, 15*time.Second, cfg.ExaTimeout)
	require.Equal(t, 5, cfg.NumResults)
	require.Equal(t, 4, cfg.SearchConcurrency)
	require.Equal(t, "retrievals", cfg.KafkaTopic)
	require.False(t, cfg.PublishingEnabled())
	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "retrievals", cfg.ElasticsearchIndex)
}

func TestLoadAPIOverrides(t *testing.T) {
	t.Setenv("EXASEARCH_API_KEY", "exa-key")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("EXA_BASE_URL", "http://exa.local/")
	t.Setenv("EXA_TIMEOUT", "3s")
	t.Setenv("SEARCH_NUM_RESULTS", "3")
	t.Setenv("SEARCH_CONCURRENCY", "2")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("BRAIN_API_KEY", "secret")
	t.Setenv("API_BIND_ADDR", ":9090")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)

	require.Equal(t, "sk-test", cfg.OpenAIKey)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, "http://exa.local", cfg.ExaBaseURL)
	require.Equal(t, 3*time.Second, cfg.ExaTimeout)
	require.Equal(t, 3, cfg.NumResults)
	require.Equal(t, 2, cfg.SearchConcurrency)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.True(t, cfg.PublishingEnabled())
	require.Equal(t, "secret", cfg.AccessKey)
	require.Equal(t, ":9090", cfg.BindAddr)
}

func TestLoadAPIRequiresSearchKey(t *testing.T) {
	t.Setenv("EXASEARCH_API_KEY", "")

	_, err := config.LoadAPI()
	require.ErrorContains(t, err, "EXASEARCH_API_KEY")
}

func TestLoadAPIRejectsBadPaging(t *testing.T) {
	t.Setenv("EXASEARCH_API_KEY", "exa-key")
	t.Setenv("API_PAGE_SIZE", "50")
	t.Setenv("API_MAX_PAGE_SIZE", "10")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadArchiverDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadArchiver()
	require.NoError(t, err)

	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "retrievals", cfg.KafkaTopic)
	require.Equal(t, "retrieval-archiver", cfg.KafkaConsumer)
	require.Equal(t, 8, cfg.TermLimit)
	require.Equal(t, 4, cfg.TermMinLength)
	require.Equal(t, 20000, cfg.DedupeCapacity)
	require.Equal(t, 24*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 10, cfg.BatchSize)
}

func TestLoadArchiverOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("ARCHIVER_TERM_LIMIT", "12")
	t.Setenv("ARCHIVER_TERM_MIN_LEN", "5")
	t.Setenv("ARCHIVER_DEDUPE_CAPACITY", "5")
	t.Setenv("ARCHIVER_DEDUPE_TTL", "48h")
	t.Setenv("ARCHIVER_BATCH_SIZE", "3")

	cfg, err := config.LoadArchiver()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
	require.Len(t, cfg.KafkaBrokers, 2)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 12, cfg.TermLimit)
	require.Equal(t, 5, cfg.TermMinLength)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("RETENTION_CRON", "soon")
	t.Setenv("RETENTION_MAX_AGE", "")
	t.Setenv("RETENTION_BATCH_SIZE", "")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.Interval)
}
